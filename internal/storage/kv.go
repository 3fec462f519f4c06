// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey is returned for empty or unsafe keys.
	ErrInvalidKey = errors.New("invalid key")

	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// KeyError wraps a failure for one key and operation.
type KeyError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// =============================================================================
// KV INTERFACE
// =============================================================================

// KV is a minimal key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Close closes kv if it holds resources.
func Close(kv KV) error {
	if c, ok := kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// validateKey rejects keys that could escape a directory or break a file name.
func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// =============================================================================
// MEMORY
// =============================================================================

// Memory is an in-process KV. The zero value is not usable; call NewMemory.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, &KeyError{Op: "get", Key: key, Err: ErrNotFound}
	}
	return append([]byte(nil), v...), nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return &KeyError{Op: "set", Key: key, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements KV.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of keys held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
