// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen chat, the default command.
package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/echomed/drecho/internal/ui/chat"
)

// RunTUI runs the Bubble Tea chat screen. Without a terminal it falls back
// to the line-based chat.
func (a *App) RunTUI(ctx context.Context, args Args) error {
	if !IsTTY() || !IsStdoutTTY() {
		return a.RunChat(ctx, args)
	}

	st := a.Assistant.Status()
	m := chat.New(a.Store, chat.Options{
		Model:    st.Model,
		Offline:  st.FallbackActive,
		Markdown: a.Config.UI.Markdown && !args.NoMarkdown,
		WordWrap: a.Config.UI.WordWrap,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return NewCommandError("tui", "", "Try drecho chat for the line-based chat", err)
	}
	return nil
}
