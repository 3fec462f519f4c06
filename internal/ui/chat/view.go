// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/echomed/drecho/internal/model"
)

const (
	headerHeight = 2
	inputHeight  = 3
	footerHeight = 1
)

// =============================================================================
// STYLES
// =============================================================================

var (
	brandColor  = lipgloss.Color("#3b82f6")
	accentColor = lipgloss.Color("#8b5cf6")
	mutedColor  = lipgloss.Color("245")
	dangerColor = lipgloss.Color("#ef4444")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(brandColor)
	badgeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b"))
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle = lipgloss.NewStyle().Foreground(dangerColor)

	userNameStyle      = lipgloss.NewStyle().Bold(true).Foreground(brandColor)
	assistantNameStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandColor).
			Padding(0, 1)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(brandColor).
			Padding(0, 3)
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.store.IsOpen() {
		return m.renderLanding()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderFooter(),
	)
}

func (m Model) renderLanding() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EchoMed") + "\n\n")
	b.WriteString("Your AI health assistant is here to help with general health\n")
	b.WriteString("questions, symptoms and wellness advice.\n\n")
	b.WriteString(buttonStyle.Render("Chat with Dr. Echo") + "\n\n")
	b.WriteString(mutedStyle.Render("Enter to open, q to quit"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("Dr. Echo")
	var badge string
	if m.opts.Offline {
		badge = badgeStyle.Render("offline, built-in guidance")
	} else if m.opts.Model != "" {
		badge = mutedStyle.Render(m.opts.Model)
	}
	line := title + "  " + badge
	sub := mutedStyle.Render("General information only, not a substitute for professional care.")
	return line + "\n" + sub
}

func (m Model) renderInput() string {
	return inputBoxStyle.Width(max(m.width-2, 10)).Render(m.input.View())
}

func (m Model) renderFooter() string {
	switch {
	case m.lastError != nil:
		return errorStyle.Render("Error: " + m.lastError.Error())
	case m.statusMsg != "":
		return mutedStyle.Render(m.statusMsg)
	}
	return m.help.View(m.keys)
}

// renderTranscript renders every visible message, then the reply in
// progress.
func (m Model) renderTranscript() string {
	var b strings.Builder
	for _, msg := range m.store.Messages().Visible() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.store.IsTyping() {
		b.WriteString(assistantNameStyle.Render(model.RoleAssistant.DisplayName()) + "\n")
		if partial := m.store.Partial(); partial != "" {
			b.WriteString(m.wrap(partial) + mutedStyle.Render(" ▌") + "\n")
		} else {
			b.WriteString(mutedStyle.Render("typing "+m.spinner.View()) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderMessage(msg model.Message) string {
	name := userNameStyle.Render(msg.Role.DisplayName())
	if msg.IsAssistant() {
		name = assistantNameStyle.Render(msg.Role.DisplayName())
	}
	header := name + " " + mutedStyle.Render(msg.FormattedTime())

	body := m.wrap(msg.Content)
	if msg.IsAssistant() && m.renderer != nil {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			body = strings.Trim(out, "\n")
		}
	}
	return header + "\n" + body + "\n"
}

func (m Model) wrap(s string) string {
	return lipgloss.NewStyle().Width(m.contentWidth()).Render(s)
}
