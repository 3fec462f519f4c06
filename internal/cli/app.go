// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"

	"github.com/echomed/drecho/internal/assistant"
	"github.com/echomed/drecho/internal/config"
	"github.com/echomed/drecho/internal/conversation"
	"github.com/echomed/drecho/internal/facilities"
	"github.com/echomed/drecho/internal/storage"
)

// App carries the services a command needs. main builds it once; commands
// that do not need storage run with Store and Assistant left nil.
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger

	Assistant *assistant.Client
	Store     *conversation.Store
	Directory *facilities.Directory

	// StorageInfo describes the backend for the status command.
	StorageInfo storage.Options

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// TTY enables markdown, colours and spinners. main sets it from
	// IsStdoutTTY; tests leave it false.
	TTY bool

	markdown *glamour.TermRenderer
}

// NewApp returns an App writing to the process's standard streams. A nil
// cfg uses the process-wide configuration.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if cfg == nil {
		cfg = config.Global()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		Config: cfg,
		Logger: logger,
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		TTY:    IsStdoutTTY(),
	}
}

// markdownEnabled reports whether replies should be rendered as markdown.
func (a *App) markdownEnabled(args Args) bool {
	return a.TTY && a.Config.UI.Markdown && !args.NoMarkdown && !args.JSON
}

// render formats an assistant reply for the terminal.
func (a *App) render(args Args, content string) string {
	if !a.markdownEnabled(args) {
		if a.TTY && !args.JSON {
			return WrapText(content, min(a.Config.UI.WordWrap, GetTerminalWidth()))
		}
		return content
	}
	if a.markdown == nil {
		a.markdown = newMarkdownRenderer(a.Config.UI.WordWrap, a.TTY)
	}
	return renderMarkdown(a.markdown, content)
}

// Run executes cmd.
func (a *App) Run(ctx context.Context, cmd Command, args Args) error {
	if cmd.NeedsServices() && (a.Store == nil || a.Assistant == nil) {
		return NewCommandError(cmd.String(), "", "", errServicesMissing)
	}
	if a.Directory == nil {
		a.Directory = facilities.NewDirectory(facilities.DefaultCatalog())
	}

	switch cmd {
	case CmdTUI:
		return a.RunTUI(ctx, args)
	case CmdChat:
		return a.RunChat(ctx, args)
	case CmdAsk:
		return a.RunAsk(ctx, args)
	case CmdStatus:
		return a.RunStatus(ctx, args)
	case CmdHistory:
		return a.RunHistory(ctx, args)
	case CmdClear:
		return a.RunClear(ctx, args)
	case CmdServe:
		return a.RunServe(ctx, args)
	case CmdWellness:
		return a.RunWellness(ctx, args)
	case CmdMeditate:
		return a.RunMeditate(ctx, args)
	case CmdFacilities:
		return a.RunFacilities(ctx, args)
	case CmdConfig:
		return a.RunConfig(ctx, args)
	case CmdVersion:
		return PrintVersion(a.Out, args.JSON)
	case CmdHelp:
		PrintUsage(a.Out)
		return nil
	default:
		return &UsageError{Usage: "drecho help", Message: "unknown command: " + args.Name}
	}
}
