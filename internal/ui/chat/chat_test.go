// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echomed/drecho/internal/assistant"
	"github.com/echomed/drecho/internal/conversation"
	"github.com/echomed/drecho/internal/fallback"
	"github.com/echomed/drecho/internal/storage"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestModel(t *testing.T) (Model, *conversation.Store) {
	t.Helper()
	client := assistant.New(assistant.Config{},
		assistant.WithLogger(quietLogger),
		assistant.WithFallback(fallback.New(fallback.WithDelay(0), fallback.WithLogger(quietLogger))),
	)
	store, err := conversation.New(context.Background(), client, storage.NewMemory(), conversation.WithLogger(quietLogger))
	require.NoError(t, err)

	m := New(store, Options{Model: "gemini-1.5-pro", Offline: true})
	t.Cleanup(m.Close)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, store
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func openPanel(t *testing.T, m Model) Model {
	t.Helper()
	m = update(t, m, enter())
	require.True(t, m.IsOpen())
	return m
}

func TestLanding_EnterOpensPanel(t *testing.T) {
	m, store := newTestModel(t)

	assert.Contains(t, m.View(), "Chat with Dr. Echo")
	assert.False(t, store.IsOpen())

	m = openPanel(t, m)
	view := m.View()
	assert.Contains(t, view, "Hello! I'm Dr. Echo")
	assert.Contains(t, view, "offline")
}

func TestLanding_QuitKey(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSubmit_SendsThroughStore(t *testing.T) {
	m, store := newTestModel(t)
	m = openPanel(t, m)
	m = typeText(t, m, "I have a headache")
	assert.Equal(t, "I have a headache", m.Input())

	m, cmd := updateCmd(t, m, enter())
	require.NotNil(t, cmd)
	assert.True(t, m.Sending())
	assert.Empty(t, m.Input())

	done := cmd()
	require.IsType(t, SendDoneMsg{}, done)
	assert.NoError(t, done.(SendDoneMsg).Err)

	m = update(t, m, done)
	assert.False(t, m.Sending())

	msgs := store.Messages().Visible()
	require.Len(t, msgs, 3)
	assert.Equal(t, "I have a headache", msgs[1].Content)
	assert.True(t, strings.HasPrefix(msgs[2].Content, "Headaches can be caused"))
	assert.Contains(t, m.View(), "Headaches can be caused")
}

func TestSubmit_IgnoredWhileSending(t *testing.T) {
	m, _ := newTestModel(t)
	m = openPanel(t, m)

	m = typeText(t, m, "hello")
	m, first := updateCmd(t, m, enter())
	require.NotNil(t, first)

	m = typeText(t, m, "again")
	_, second := updateCmd(t, m, enter())
	assert.Nil(t, second)

	first()
}

func TestSubmit_BlankIgnored(t *testing.T) {
	m, store := newTestModel(t)
	m = openPanel(t, m)

	m = typeText(t, m, "   ")
	m, cmd := updateCmd(t, m, enter())
	assert.Nil(t, cmd)
	assert.False(t, m.Sending())
	assert.Len(t, store.Messages().Visible(), 1)
}

func TestSlashClear(t *testing.T) {
	m, store := newTestModel(t)
	m = openPanel(t, m)
	require.NoError(t, store.Send(context.Background(), "hello"))
	require.Len(t, store.Messages().Visible(), 3)

	m = typeText(t, m, "/clear")
	m, cmd := updateCmd(t, m, enter())
	require.NotNil(t, cmd)

	m = update(t, m, cmd())
	assert.Len(t, store.Messages().Visible(), 1)
	assert.Contains(t, m.View(), "Conversation cleared")
}

func TestEscClosesPanel(t *testing.T) {
	m, store := newTestModel(t)
	m = openPanel(t, m)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, store.IsOpen())
	assert.Contains(t, m.View(), "Chat with Dr. Echo")
}

func TestCtrlC_QuitsWhenIdle(t *testing.T) {
	m, _ := newTestModel(t)
	m = openPanel(t, m)

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestStoreEvent_ShowsRepliesFromElsewhere(t *testing.T) {
	m, store := newTestModel(t)
	m = openPanel(t, m)

	require.NoError(t, store.Send(context.Background(), "any advice on exercise?"))

	m, cmd := updateCmd(t, m, StoreEventMsg{Event: conversation.Event{Type: conversation.EventMessage}})
	assert.NotNil(t, cmd, "the model keeps listening for events")
	assert.Contains(t, m.View(), "Regular physical activity")
}

func TestWaitForEvent_ClosedChannel(t *testing.T) {
	ch := make(chan conversation.Event)
	close(ch)
	assert.IsType(t, storeClosedMsg{}, waitForEvent(ch)())
	assert.Nil(t, waitForEvent(nil))
}

func TestHelpToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m = openPanel(t, m)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, m.help.ShowAll)
	assert.Empty(t, m.Input())
}

func TestCancelManager(t *testing.T) {
	cm := newCancelManager()
	assert.False(t, cm.cancel())

	ctx, cancel := context.WithCancel(context.Background())
	cm.set(cancel)
	assert.True(t, cm.cancel())
	assert.Error(t, ctx.Err())
	assert.False(t, cm.cancel())
}
