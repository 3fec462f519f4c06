// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/echomed/drecho/internal/conversation"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.store.IsOpen() {
			return m.handleChatKey(msg)
		}
		return m.handleLandingKey(msg)

	case StoreEventMsg:
		if msg.Event.Type == conversation.EventVisibility && msg.Event.Open {
			m.input.Focus()
		}
		m.refresh()
		return m, waitForEvent(m.events)

	case storeClosedMsg:
		m.events = nil
		return m, nil

	case SendDoneMsg:
		m.sending = false
		m.cancelMgr.set(nil)
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.lastError = msg.Err
		}
		m.refresh()
		return m, nil

	case ClearDoneMsg:
		if msg.Err != nil {
			m.lastError = msg.Err
		} else {
			m.statusMsg = "Conversation cleared"
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.store.IsTyping() {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleLandingKey handles keys while the panel is closed.
func (m Model) handleLandingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), msg.Type == tea.KeyCtrlC, msg.Type == tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Open):
		m.store.Open()
		m.input.Focus()
		m.refresh()
		return m, nil
	}
	return m, nil
}

// handleChatKey handles keys while the panel is open.
func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.cancelMgr.cancel() {
			m.statusMsg = "Reply cancelled"
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Close):
		if m.sending && m.cancelMgr.cancel() {
			m.statusMsg = "Reply cancelled"
			return m, nil
		}
		m.store.Close()
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.statusMsg = ""
		return m, clearCmd(m.store)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help) && m.input.Value() == "":
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the typed line, or runs it when it is a slash command.
// Sending is ignored while a reply is in progress.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.sending {
		return m, nil
	}

	switch strings.ToLower(text) {
	case "/clear":
		m.input.Reset()
		return m, clearCmd(m.store)
	case "/quit", "/exit", "/q":
		m.quitting = true
		return m, tea.Quit
	case "/close":
		m.input.Reset()
		m.store.Close()
		return m, nil
	}

	cmd := m.startSend(text)
	m.refresh()
	return m, cmd
}
