// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope every --json command writes.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse wraps a successful result.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse wraps a failure.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response, indented, to w.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// MARKDOWN
// =============================================================================

// newMarkdownRenderer returns a glamour renderer sized to wrap columns, or
// nil when one cannot be built.
func newMarkdownRenderer(wrap int, tty bool) *glamour.TermRenderer {
	style := glamour.WithStandardStyle("notty")
	if tty {
		if HasDarkBackground() {
			style = glamour.WithStandardStyle("dark")
		} else {
			style = glamour.WithStandardStyle("light")
		}
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders content with r, returning it unchanged when r is
// nil or rendering fails.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// =============================================================================
// FORMATTING
// =============================================================================

// formatDuration formats d as its largest whole unit.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ValidateOutputPath resolves path for writing and requires it to sit
// under the home, working or temp directory.
func ValidateOutputPath(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", errors.New("path traversal not allowed")
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	for _, dir := range []string{home, cwd, os.TempDir()} {
		if dir != "" && isPathWithinDir(abs, dir) {
			return abs, nil
		}
	}
	return "", errors.New("path must be within home, cwd, or temp directory")
}

// isPathWithinDir checks containment on path boundaries, so /home/userX is
// not inside /home/user.
func isPathWithinDir(path, dir string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(dir)
	if cleanPath == cleanDir {
		return true
	}
	return strings.HasPrefix(cleanPath, cleanDir+string(filepath.Separator))
}
