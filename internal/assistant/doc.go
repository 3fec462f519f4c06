// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant orchestrates completions for Dr. Echo.
//
// A Client wraps a remote Gemini backend and a fallback responder. The
// backend is created lazily on first use. When no credential is configured,
// when the backend cannot be created, or when any request fails, the client
// switches to fallback mode for the rest of its life and answers from the
// canned responder instead. Callers never see a vendor error: single-shot
// calls return fallback text, and streaming calls receive OnError followed
// by a fallback stream.
//
// # Key Types
//
//   - Config: Explicit credential, model and backend selection
//   - Client: Lazily initialized completion client with fallback
//   - Status: Snapshot of initialization and fallback state
//   - Backend: Remote model implementation (REST or langchaingo)
//
// # Usage
//
//	client := assistant.New(assistant.Config{APIKey: key}, assistant.WithLogger(logger))
//	text, err := client.Complete(ctx, transcript)
//	client.CompleteStreaming(ctx, transcript, sink)
package assistant
