// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local key-value persistence used for the
// Dr. Echo transcript.
//
// Values are opaque byte slices. An absent key reads as ErrNotFound and
// deleting an absent key is not an error.
//
// # Key Types
//
//   - KV: Get/Set/Delete interface implemented by every backend
//   - Memory: In-process map, for tests and ephemeral sessions
//   - File: One JSON file per key, written atomically
//   - SQLite: Single-table store on the pure Go SQLite driver
//   - Sealed: Wrapper that encrypts values with AES-256-GCM
//
// # Usage
//
//	kv, err := storage.Open(storage.Options{Driver: "file", Path: dataDir})
//	defer storage.Close(kv)
//	err = kv.Set(ctx, "drEchoMessages", data)
//
// # Storage Location
//
// The default data directory is ~/.drecho/data.
package storage
