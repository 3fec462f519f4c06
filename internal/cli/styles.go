// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for drecho commands.
//
// Colors are disabled for non-TTY output and when NO_COLOR is set; see
// terminal.go.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/echomed/drecho/internal/facilities"
	"github.com/echomed/drecho/internal/model"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// PALETTE
// =============================================================================

var (
	colorBrand   = lipgloss.Color("#3b82f6") // EchoMed blue
	colorAccent  = lipgloss.Color("#8b5cf6")
	colorSuccess = lipgloss.Color("#22c55e")
	colorDanger  = lipgloss.Color("#ef4444")
	colorWarning = lipgloss.Color("#f59e0b")
	colorText    = lipgloss.Color("252")
	colorMuted   = lipgloss.Color("245")
	colorDim     = lipgloss.Color("242")
	colorRule    = lipgloss.Color("240")
)

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	DimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(colorRule)

	PromptStyle = lipgloss.NewStyle().
			Foreground(colorBrand).
			Bold(true)

	CommandStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	// Speaker names in transcripts.
	UserStyle      = lipgloss.NewStyle().Foreground(colorBrand).Bold(true)
	AssistantStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	SystemStyle    = lipgloss.NewStyle().Foreground(colorWarning)
)

// =============================================================================
// RENDER HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule, 60 columns unless width is given.
func RenderSeparator(width ...int) string {
	w := 60
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("─", w))
}

// RenderStatus renders a bracketed status tag.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "online", "ready":
		return SuccessStyle.Render("[OK]")
	case "error", "fail", "failed":
		return ErrorStyle.Render("[FAIL]")
	case "warning", "warn", "offline", "degraded":
		return WarningStyle.Render("[" + strings.ToUpper(status) + "]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderLabel renders a fixed-width field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderField renders "label value" on one line.
func RenderField(label, value string) string {
	return RenderLabel(label) + ValueStyle.Render(value)
}

// RenderSpeaker renders the display name for a message role.
func RenderSpeaker(role model.Role) string {
	name := role.DisplayName()
	switch role {
	case model.RoleUser:
		return UserStyle.Render(name)
	case model.RoleAssistant:
		return AssistantStyle.Render(name)
	default:
		return SystemStyle.Render(name)
	}
}

// RenderFacilityType renders a facility type in its map marker colour.
func RenderFacilityType(t facilities.Type) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Color())).
		Render(string(t))
}
