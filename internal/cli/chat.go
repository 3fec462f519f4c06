// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat in the terminal.
//
// Command: chat
//
// Interactive commands:
//
//	/help, /h        Show available commands
//	/history         Show the conversation
//	/export FILE     Save the conversation as markdown
//	/status, /s      Show assistant status
//	/clear, /c       Clear the conversation
//	/quit, /q        Exit chat
//	Ctrl+C           Cancel the reply in progress, or exit at the prompt
//	Ctrl+D           Exit chat
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/echomed/drecho/internal/config"
	"github.com/echomed/drecho/internal/model"
	"github.com/echomed/drecho/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// maxHistoryLines caps the saved prompt history.
const maxHistoryLines = 500

// ChatCLI reads prompts with line editing and history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI starts line editing and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory reads saved prompts, if any.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput prompts for one line. Non-blank lines join the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the prompt history, owner-only.
func (c *ChatCLI) SaveHistory() {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	_ = util.AtomicWriteFile(c.historyFile, tailLines(buf.Bytes(), maxHistoryLines), 0600)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

func tailLines(data []byte, n int) []byte {
	lines := bytes.SplitAfter(data, []byte("\n"))
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= n {
		return data
	}
	return bytes.Join(lines[len(lines)-n:], nil)
}

// =============================================================================
// CANCELLATION
// =============================================================================

// replyCanceller lets Ctrl+C cancel the reply in progress without ending
// the chat.
type replyCanceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *replyCanceller) set(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
}

func (r *replyCanceller) fire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// RunChat runs the interactive chat loop.
func (a *App) RunChat(ctx context.Context, args Args) error {
	input := NewChatCLI()
	defer input.Close()

	a.Store.Open()
	defer a.Store.Close()

	if !args.Quiet {
		a.printWelcome()
	}

	var inflight replyCanceller
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()
	go func() {
		for range sigs {
			if inflight.fire() {
				fmt.Fprintln(a.Err, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	start := time.Now()
	for {
		line, err := input.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				a.Logger.Debug("prompt failed", "error", err)
			}
			fmt.Fprintln(a.Out)
			a.printGoodbye(start)
			return nil
		}

		msgCtx, cancel := context.WithCancel(ctx)
		inflight.set(cancel)
		cont, err := a.handleChatLine(msgCtx, args, line)
		inflight.set(nil)
		cancel()

		if err != nil {
			DisplayError(a.Err, err, false)
		}
		if !cont || ctx.Err() != nil {
			a.printGoodbye(start)
			return nil
		}
	}
}

// handleChatLine handles one line of chat input. It returns false when the
// user asked to leave.
func (a *App) handleChatLine(ctx context.Context, args Args, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return true, nil
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		return false, nil
	case strings.HasPrefix(line, "/"):
		return a.handleSlashCommand(ctx, args, line)
	}

	_, err := a.converse(ctx, args, line, true)
	return true, err
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (a *App) handleSlashCommand(ctx context.Context, args Args, line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	rest := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		a.printChatHelp()
	case "/history":
		a.printTranscript()
	case "/export":
		if len(rest) == 0 {
			return true, ErrMissingArgument("file name", "/export conversation.md")
		}
		path, err := a.exportConversation(rest[0])
		if err != nil {
			return true, err
		}
		fmt.Fprintf(a.Out, "%s Saved conversation to %s\n", SuccessStyle.Render("[OK]"), path)
	case "/status", "/s":
		a.printStatusSummary()
	case "/clear", "/c":
		if err := a.Store.Clear(ctx); err != nil {
			return true, NewCommandError("chat", "clear", "", err)
		}
		fmt.Fprintln(a.Out, CommandStyle.Render("[Conversation cleared]"))
	case "/quit", "/q", "/exit":
		return false, nil
	default:
		return true, &UsageError{Usage: "/help", Message: "unknown command: " + command}
	}
	return true, nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (a *App) printWelcome() {
	st := a.Assistant.Status()

	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, TitleStyle.Render("Dr. Echo"))
	fmt.Fprintln(a.Out, RenderSeparator(30))
	if st.FallbackActive {
		fmt.Fprintln(a.Out, RenderField("Mode:", "offline (built-in guidance)"))
	} else {
		fmt.Fprintln(a.Out, RenderField("Model:", st.Model))
	}
	fmt.Fprintln(a.Out)

	msgs := a.Store.Messages().Visible()
	if len(msgs) > 1 {
		fmt.Fprintln(a.Out, DimStyle.Render(fmt.Sprintf("Continuing a conversation of %d messages. /history shows it, /clear starts over.", len(msgs))))
	} else if last, ok := msgs.Last(); ok {
		fmt.Fprintln(a.Out, speakerLine(last))
	}
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(a.Out)
}

func (a *App) printChatHelp() {
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, SectionStyle.Render("Available Commands"))
	commands := []struct{ cmd, desc string }{
		{"/help, /h", "Show this help"},
		{"/history", "Show the conversation"},
		{"/export FILE", "Save the conversation as markdown"},
		{"/status, /s", "Show assistant status"},
		{"/clear, /c", "Clear the conversation"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(a.Out, "  %s  %s\n", CommandStyle.Render(util.PadDisplay(c.cmd, 15)), DimStyle.Render(c.desc))
	}
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, DimStyle.Render("Ctrl+C cancels a reply in progress, Ctrl+D exits"))
	fmt.Fprintln(a.Out)
}

func (a *App) printGoodbye(start time.Time) {
	if n := len(a.Store.Messages().Visible()); n > 1 {
		fmt.Fprintln(a.Out, DimStyle.Render(fmt.Sprintf("%d messages saved. Session length %s.", n, formatDuration(time.Since(start)))))
	}
	fmt.Fprintln(a.Out, DimStyle.Render("Take care!"))
}

// printTranscript lists the visible messages, one line each.
func (a *App) printTranscript() {
	msgs := a.Store.Messages().Visible()
	width := GetTerminalWidth() - 16
	if width < 20 {
		width = 20
	}

	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, SectionStyle.Render("Conversation"))
	for i, m := range msgs {
		fmt.Fprintf(a.Out, "  %2d. %s %s %s\n",
			i+1,
			DimStyle.Render(m.FormattedTime()),
			RenderSpeaker(m.Role)+":",
			util.TruncateDisplay(util.OneLine(m.Content), width),
		)
	}
	fmt.Fprintln(a.Out)
}

// exportConversation writes the conversation as markdown to path.
func (a *App) exportConversation(path string) (string, error) {
	abs, err := ValidateOutputPath(path)
	if err != nil {
		return "", NewValidationError("export path", path, err.Error())
	}
	if err := util.AtomicWriteFile(abs, []byte(a.Store.ExportMarkdown()), 0600); err != nil {
		return "", NewCommandError("export", "", "", err)
	}
	return abs, nil
}

// speakerLine renders "Name: content" for a single message.
func speakerLine(m model.Message) string {
	return RenderSpeaker(m.Role) + ": " + m.Content
}
