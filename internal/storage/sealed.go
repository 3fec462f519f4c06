// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// Encryption parameters.
const (
	// SaltKey holds the random PBKDF2 salt inside the wrapped store.
	SaltKey = "sealed-salt"

	saltSize         = 16
	keySize          = 32
	pbkdf2Iterations = 100000
)

// sealedMagic prefixes every encrypted value.
var sealedMagic = []byte("DRE1")

var (
	// ErrNoPassphrase is returned when Sealed is created without a passphrase.
	ErrNoPassphrase = errors.New("encryption passphrase is empty")

	// ErrDecrypt is returned when a value cannot be authenticated.
	ErrDecrypt = errors.New("failed to decrypt value (wrong passphrase or corrupted data)")
)

// Sealed encrypts values with AES-256-GCM before handing them to the
// wrapped store. The key is derived from a passphrase with PBKDF2-SHA256
// and a per-store random salt.
type Sealed struct {
	inner      KV
	passphrase []byte

	once sync.Once
	aead cipher.AEAD
	err  error
}

// NewSealed wraps inner.
func NewSealed(inner KV, passphrase string) (*Sealed, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	return &Sealed{inner: inner, passphrase: []byte(passphrase)}, nil
}

// cipher derives the key on first use, creating the salt if absent.
func (s *Sealed) cipher(ctx context.Context) (cipher.AEAD, error) {
	s.once.Do(func() {
		salt, err := s.inner.Get(ctx, SaltKey)
		if IsNotFound(err) {
			salt = make([]byte, saltSize)
			if _, err = rand.Read(salt); err != nil {
				s.err = fmt.Errorf("failed to generate salt: %w", err)
				return
			}
			err = s.inner.Set(ctx, SaltKey, salt)
		}
		if err != nil {
			s.err = fmt.Errorf("failed to load salt: %w", err)
			return
		}

		key := pbkdf2.Key(s.passphrase, salt, pbkdf2Iterations, keySize, sha256.New)
		block, err := aes.NewCipher(key)
		if err != nil {
			s.err = fmt.Errorf("failed to create cipher: %w", err)
			return
		}
		s.aead, s.err = cipher.NewGCM(block)
	})
	return s.aead, s.err
}

// Get implements KV.
func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	aead, err := s.cipher(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, sealedMagic) {
		return nil, &KeyError{Op: "get", Key: key, Err: errors.New("value is not encrypted")}
	}
	data = data[len(sealedMagic):]

	nonceSize := aead.NonceSize()
	if len(data) < nonceSize {
		return nil, &KeyError{Op: "get", Key: key, Err: ErrDecrypt}
	}
	plain, err := aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(key))
	if err != nil {
		return nil, &KeyError{Op: "get", Key: key, Err: ErrDecrypt}
	}
	return plain, nil
}

// Set implements KV.
func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	if key == SaltKey {
		return &KeyError{Op: "set", Key: key, Err: ErrInvalidKey}
	}
	aead, err := s.cipher(ctx)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+len(nonce)+len(value)+aead.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, value, []byte(key))
	return s.inner.Set(ctx, key, out)
}

// Delete implements KV.
func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close closes the wrapped store.
func (s *Sealed) Close() error {
	return Close(s.inner)
}
