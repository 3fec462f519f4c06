// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateRunes truncates s to at most maxRunes characters, ending in "..."
// when anything was cut.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// DisplayWidth returns the number of terminal columns s occupies.
func DisplayWidth(s string) int {
	return runewidth.StringWidth(s)
}

// TruncateDisplay truncates s to maxWidth terminal columns, ending in "..."
// when anything was cut. Wide characters count as two columns.
func TruncateDisplay(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadDisplay right-pads s with spaces to width columns.
func PadDisplay(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// OneLine collapses all runs of whitespace, including newlines, into single
// spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
