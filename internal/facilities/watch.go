// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package facilities

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Directory from a catalog file whenever it changes.
// A change that fails to parse leaves the previous catalog in place.
type Watcher struct {
	dir      *Directory
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onReload func(n int)
}

// NewWatcher creates a watcher for path feeding dir.
func NewWatcher(dir *Directory, path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   logger.With("component", "facilities"),
	}
}

// WithDebounce sets the quiet period before a reload.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// OnReload registers a callback run after each successful reload with the
// new catalog size.
func (w *Watcher) OnReload(fn func(n int)) *Watcher {
	w.onReload = fn
	return w
}

// Reload reads the catalog file into the directory once.
func (w *Watcher) Reload() error {
	items, err := LoadCatalog(w.path)
	if err != nil {
		return err
	}
	w.dir.Replace(items)
	w.logger.Info("facility catalog loaded", "path", w.path, "facilities", len(items))
	if w.onReload != nil {
		w.onReload(len(items))
	}
	return nil
}

// Run watches the catalog file until ctx is done. The parent directory is
// watched so editors that replace the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.logger.Warn("facility catalog reload failed, keeping previous catalog", "error", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("facility watcher error", "error", err)
		}
	}
}
