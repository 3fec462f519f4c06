// drecho - Dr. Echo, the EchoMed AI health assistant, in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/echomed/drecho/internal/assistant"
	"github.com/echomed/drecho/internal/cli"
	"github.com/echomed/drecho/internal/config"
	"github.com/echomed/drecho/internal/conversation"
	"github.com/echomed/drecho/internal/facilities"
	"github.com/echomed/drecho/internal/fallback"
	"github.com/echomed/drecho/internal/logging"
	"github.com/echomed/drecho/internal/server"
	"github.com/echomed/drecho/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
	server.Version = Version
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command and returns the exit status.
func run(argv []string) int {
	cmd, args := cli.Parse(argv)

	cfg, err := loadConfig(args)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitConfigError
	}

	logOut, closeLog := logWriter(cmd)
	defer closeLog()
	level := cfg.Log.Level
	if args.Verbose {
		level = "debug"
	}
	logger := logging.New(level, cfg.Log.Format, logOut)
	slog.SetDefault(logger)

	app := cli.NewApp(cfg, logger)
	app.ConfigPath = args.ConfigPath

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if cmd.NeedsServices() {
		cleanup, err := openServices(ctx, app, cfg, logger)
		if err != nil {
			cli.DisplayError(os.Stderr, err, args.JSON)
			return cli.GetExitCode(err)
		}
		defer cleanup()
	}

	if err := app.Run(ctx, cmd, args); err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}

// loadConfig reads --config or the default config file and applies the
// command-line overrides.
func loadConfig(args cli.Args) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil && !args.Quiet {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
	}

	if args.Model != "" {
		cfg.Assistant.Model = args.Model
	}
	if args.Offline {
		cfg.Assistant.APIKey = ""
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// logWriter picks where logs go. The full-screen chat owns the terminal,
// so its logs go to a file in the config directory.
func logWriter(cmd cli.Command) (io.Writer, func()) {
	if cmd != cli.CmdTUI {
		return os.Stderr, func() {}
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return io.Discard, func() {}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return io.Discard, func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, "drecho.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { f.Close() }
}

// openServices opens storage and builds the assistant, the conversation
// store and the facility directory. The returned function closes storage.
func openServices(ctx context.Context, app *cli.App, cfg *config.Config, logger *slog.Logger) (func(), error) {
	opts, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}
	kv, err := storage.Open(opts)
	if err != nil {
		return nil, cli.NewCommandError("storage", "open", "Check storage.path and storage.passphrase in the config", err)
	}

	client := assistant.New(cfg.AssistantOptions(),
		assistant.WithLogger(logger),
		assistant.WithFallback(fallback.New(
			fallback.WithDelay(cfg.FallbackDelay()),
			fallback.WithLogger(logging.Component(logger, "fallback")),
		)),
	)

	store, err := conversation.New(ctx, client, kv, conversation.WithLogger(logger))
	if err != nil {
		storage.Close(kv)
		return nil, err
	}

	items := facilities.DefaultCatalog()
	if file := cfg.Facilities.File; file != "" {
		loaded, err := facilities.LoadCatalog(file)
		if err != nil {
			logger.Warn("facility catalog not loaded, using built-in list", "file", file, "error", err)
		} else {
			items = loaded
		}
	}

	app.Assistant = client
	app.Store = store
	app.Directory = facilities.NewDirectory(items)
	app.StorageInfo = opts

	return func() {
		if err := storage.Close(kv); err != nil {
			logger.Error("closing storage", "error", err)
		}
	}, nil
}
