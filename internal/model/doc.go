// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the Dr. Echo transcript.
//
// # Key Types
//
//   - Message: Single immutable message with id, role, content and timestamp
//   - Role: Message role enumeration (system, user, assistant)
//   - Transcript: Ordered list of messages that always opens with the system prompt
//
// # Usage
//
// Start a session with the two seed messages:
//
//	t := model.NewTranscript()
//	t = t.Append(model.NewMessage(model.RoleUser, "I have a headache"))
//	last := t.LastUserMessage()
//
// Restore a transcript read from storage:
//
//	t := model.Transcript(decoded).EnsureSystem()
package model
