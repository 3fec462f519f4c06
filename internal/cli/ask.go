// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Command: ask [question]
//
// Examples:
//
//	drecho ask "What helps with a headache?"
//	echo "Is a fever of 38C serious?" | drecho ask
//	drecho ask --json "How much sleep do adults need?"
//
// The question and reply are added to the saved conversation, the same as
// a message typed in chat.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// maxStdinQuestion bounds a question piped on stdin.
const maxStdinQuestion = 32 << 10

const askUsage = `drecho ask "What helps with a headache?"`

// AskData is the --json form of the ask command.
type AskData struct {
	Question string `json:"question"`
	Reply    string `json:"reply"`
	Offline  bool   `json:"offline"`
}

// RunAsk sends one question and prints the reply.
func (a *App) RunAsk(ctx context.Context, args Args) error {
	question := strings.TrimSpace(args.Parser.JoinPositional(0))
	if question == "" && a.In != nil && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(a.In, maxStdinQuestion))
		if err != nil {
			return NewCommandError("ask", "", "", fmt.Errorf("read question from stdin: %w", err))
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return ErrMissingArgument("question", askUsage)
	}

	a.Store.Open()
	reply, err := a.converse(ctx, args, question, false)
	if err != nil {
		return NewCommandError("ask", "", "", err)
	}

	if args.JSON {
		return NewJSONResponse("ask", AskData{
			Question: question,
			Reply:    reply,
			Offline:  a.Assistant.Status().FallbackActive,
		}).Write(a.Out)
	}
	return nil
}
