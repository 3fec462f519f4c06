// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - HTTP API command.
//
// Command: serve [--addr ADDR]
//
// Runs the API server and, when a facility catalog file is configured with
// watch = true, reloads the catalog whenever the file changes. Both stop
// on Ctrl+C.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/echomed/drecho/internal/facilities"
	"github.com/echomed/drecho/internal/server"
)

// RunServe runs the HTTP API until interrupted.
func (a *App) RunServe(ctx context.Context, args Args) error {
	cfg := a.Config.Server
	addr := args.Parser.FlagOrDefault("addr", cfg.Addr)

	srv := server.New(addr, a.Store, a.Assistant, a.Directory).
		WithLogger(a.Logger).
		WithRateLimit(cfg.RateLimit, cfg.Burst).
		WithCORSOrigin(cfg.CORSOrigin)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})

	if file := a.Config.Facilities.File; file != "" && a.Config.Facilities.Watch {
		w := facilities.NewWatcher(a.Directory, file, a.Logger).OnReload(func(n int) {
			if !args.Quiet {
				fmt.Fprintf(a.Err, "%s Facility catalog reloaded (%d listed)\n", CommandStyle.Render("[OK]"), n)
			}
		})
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	if !args.Quiet {
		fmt.Fprintf(a.Err, "%s Dr. Echo API listening on http://%s %s\n",
			SuccessStyle.Render("[OK]"), addr, DimStyle.Render("(Ctrl+C to stop)"))
	}

	if err := g.Wait(); err != nil {
		return NewCommandError("serve", "", "Is another process using "+addr+"? Try --addr 127.0.0.1:0", err)
	}
	return nil
}
