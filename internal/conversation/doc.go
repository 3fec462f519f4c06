// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the Dr. Echo transcript.
//
// A Store holds the ordered messages of one session, streams replies from
// the assistant into it, and persists it under a single storage key. One
// Store is built at startup and handed to every surface (CLI, TUI, HTTP).
//
// # Key Types
//
//   - Store: Transcript owner with Open/Close/Send/Ask/Clear
//   - Completer: The streaming completion dependency (assistant.Client)
//   - Event: Change notification delivered to subscribers
//
// # Usage
//
//	store, err := conversation.New(ctx, client, kv)
//	if err != nil {
//	    return err
//	}
//	store.Open()
//	reply, err := store.Ask(ctx, "I have a headache")
//
// Sends are serialized: a second Send waits until the first has appended
// its reply, or returns the context error if cancelled while waiting. A
// stream error appends a fixed apology; a fallback reply that completes
// after it is appended too.
package conversation
