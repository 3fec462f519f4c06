// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fallback produces canned, keyword-matched replies when the remote
// model is unavailable.
//
// The responder looks only at the most recent user message and checks an
// ordered list of keyword categories. The streaming variant replays the same
// reply word by word with a short pause so callers that render a live buffer
// behave exactly as they do with a real model.
//
// # Key Types
//
//   - Responder: Deterministic reply generator
//   - Category: Named keyword set with its reply
//
// # Usage
//
//	r := fallback.New(fallback.WithDelay(20 * time.Millisecond))
//	text := r.Respond(transcript)
//	r.RespondStreaming(ctx, transcript, sink)
package fallback
