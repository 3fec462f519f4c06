// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/echomed/drecho/internal/conversation"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StoreEventMsg carries one change from the conversation store.
type StoreEventMsg struct {
	Event conversation.Event
}

// storeClosedMsg reports that the subscription channel was closed.
type storeClosedMsg struct{}

// SendDoneMsg reports that a send finished. Err is set only when the send
// was abandoned before it started.
type SendDoneMsg struct {
	Err error
}

// ClearDoneMsg reports the result of clearing the conversation.
type ClearDoneMsg struct {
	Err error
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForEvent blocks until the store publishes the next change.
func waitForEvent(events <-chan conversation.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return storeClosedMsg{}
		}
		return StoreEventMsg{Event: ev}
	}
}

// sendCmd sends text through the store. The reply streams back as store
// events; the returned message only marks the end.
func sendCmd(ctx context.Context, store *conversation.Store, text string) tea.Cmd {
	return func() tea.Msg {
		return SendDoneMsg{Err: store.Send(ctx, text)}
	}
}

func clearCmd(store *conversation.Store) tea.Cmd {
	return func() tea.Msg {
		return ClearDoneMsg{Err: store.Clear(context.Background())}
	}
}
