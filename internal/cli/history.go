// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Conversation history and clear commands.
//
// Examples:
//
//	drecho history                        List the conversation
//	drecho history --full                 Full message text
//	drecho history --export chat.md       Save it as markdown
//	drecho history --json                 Messages as JSON
//	drecho clear                          Start over with the greeting
package cli

import (
	"context"
	"fmt"

	"github.com/echomed/drecho/internal/model"
)

// HistoryData is the --json form of the history command.
type HistoryData struct {
	Messages []model.Message `json:"messages"`
}

// RunHistory lists, prints or exports the saved conversation.
func (a *App) RunHistory(ctx context.Context, args Args) error {
	p := args.Parser

	if path := p.FlagOrDefault("export", p.FlagOrDefault("o", p.Flag("output"))); path != "" {
		abs, err := a.exportConversation(path)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("history", map[string]string{"exported": abs}).Write(a.Out)
		}
		fmt.Fprintf(a.Out, "%s Saved conversation to %s\n", SuccessStyle.Render("[OK]"), abs)
		return nil
	}

	msgs := a.Store.Messages().Visible()
	if args.JSON {
		return NewJSONResponse("history", HistoryData{Messages: msgs}).Write(a.Out)
	}

	if !p.BoolFlag("full") {
		a.printTranscript()
		return nil
	}

	fmt.Fprintln(a.Out)
	for _, m := range msgs {
		fmt.Fprintf(a.Out, "%s %s\n", RenderSpeaker(m.Role), DimStyle.Render(m.FormattedTime()))
		if m.IsAssistant() {
			fmt.Fprintln(a.Out, a.render(args, m.Content))
		} else {
			fmt.Fprintln(a.Out, m.Content)
		}
		fmt.Fprintln(a.Out)
	}
	return nil
}

// RunClear resets the conversation to the greeting.
func (a *App) RunClear(ctx context.Context, args Args) error {
	if err := a.Store.Clear(ctx); err != nil {
		return NewCommandError("clear", "", "The conversation was reset in memory but the saved copy could not be removed", err)
	}
	if args.JSON {
		return NewJSONResponse("clear", map[string]int{"messages": len(a.Store.Messages().Visible())}).Write(a.Out)
	}
	if !args.Quiet {
		fmt.Fprintln(a.Out, CommandStyle.Render("[Conversation cleared]"))
	}
	return nil
}
