// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/echomed/drecho/internal/util"
)

// File stores each key as <dir>/<key>.json.
type File struct {
	// BaseDir is the directory holding the files.
	BaseDir string
}

// NewFile creates a file store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("storage directory is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &File{BaseDir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.BaseDir, key+".json")
}

// Get implements KV.
func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, &KeyError{Op: "get", Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &KeyError{Op: "get", Key: key, Err: ErrNotFound}
		}
		return nil, &KeyError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// Set implements KV. Writes are atomic.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return &KeyError{Op: "set", Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := util.AtomicWriteFile(f.path(key), value, 0600); err != nil {
		return &KeyError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete implements KV.
func (f *File) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &KeyError{Op: "delete", Key: key, Err: err}
	}
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return &KeyError{Op: "delete", Key: key, Err: err}
	}
	return nil
}
