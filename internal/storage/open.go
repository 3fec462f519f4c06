// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"path/filepath"
)

// Drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver     string
	Path       string // data directory
	Encrypt    bool
	Passphrase string
}

// Open creates the store described by opts.
func Open(opts Options) (KV, error) {
	var kv KV
	var err error

	switch opts.Driver {
	case DriverFile, "":
		kv, err = NewFile(opts.Path)
	case DriverSQLite:
		kv, err = NewSQLite(filepath.Join(opts.Path, SQLiteFileName))
	case DriverMemory:
		kv = NewMemory()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.Encrypt {
		sealed, err := NewSealed(kv, opts.Passphrase)
		if err != nil {
			Close(kv)
			return nil, err
		}
		return sealed, nil
	}
	return kv, nil
}
