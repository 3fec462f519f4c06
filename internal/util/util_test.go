// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	data := []byte(`[{"role":"user"}]`)

	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", content, data)
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "kv.json")

	if err := AtomicWriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	if err := AtomicWriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("got %q, want %q", content, "updated")
	}
}

func TestAtomicWriteFile_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.json")

	for i := 0; i < 3; i++ {
		if err := AtomicWriteFile(path, []byte("data"), 0600); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on Windows")
	}
	path := filepath.Join(t.TempDir(), "secret.json")

	if err := AtomicWriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %o, want 600", info.Mode().Perm())
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/.drecho")
	if err != nil {
		t.Fatalf("ExpandHome failed: %v", err)
	}
	if got != filepath.Join(home, ".drecho") {
		t.Errorf("got %q, want %q", got, filepath.Join(home, ".drecho"))
	}

	got, _ = ExpandHome("/var/lib/drecho")
	if got != "/var/lib/drecho" {
		t.Errorf("absolute path changed: %q", got)
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 0, ""},
		{"hello", 2, "he"},
		{"héllo wörld", 7, "héll..."},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestTruncateDisplay(t *testing.T) {
	if got := TruncateDisplay("Apollo Hospital", 40); got != "Apollo Hospital" {
		t.Errorf("short string changed: %q", got)
	}
	got := TruncateDisplay("All India Institute of Medical Sciences", 12)
	if DisplayWidth(got) > 12 {
		t.Errorf("width %d exceeds 12: %q", DisplayWidth(got), got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got)
	}

	// CJK runes are two columns wide.
	wide := TruncateDisplay("医院医院医院", 7)
	if DisplayWidth(wide) > 7 {
		t.Errorf("wide truncation too long: %q (%d)", wide, DisplayWidth(wide))
	}
	if TruncateDisplay("anything", 0) != "" {
		t.Error("zero width should return empty string")
	}
}

func TestPadDisplay(t *testing.T) {
	got := PadDisplay("abc", 6)
	if got != "abc   " {
		t.Errorf("got %q", got)
	}
	if DisplayWidth(PadDisplay("医", 4)) != 4 {
		t.Error("wide rune padding should reach 4 columns")
	}
}

func TestOneLine(t *testing.T) {
	got := OneLine("  I have\na headache\t today ")
	if got != "I have a headache today" {
		t.Errorf("got %q", got)
	}
}
