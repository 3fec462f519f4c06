// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes Dr. Echo over a local HTTP API for browser front
// ends.
//
// # Endpoints
//
//   - GET  /health                     - Liveness and fallback state
//   - GET  /api/assistant/status       - Assistant service status
//   - GET  /api/conversation           - Visible transcript and typing state
//   - POST /api/conversation/open      - Show the assistant
//   - POST /api/conversation/close     - Hide the assistant
//   - POST /api/conversation/clear     - Reset to the greeting
//   - POST /api/conversation/messages  - Send a message (JSON or SSE)
//   - POST /api/wellness/score         - Score a wellness check-in
//   - POST /api/wellness/consult       - Ask Dr. Echo about a check-in
//   - GET  /api/facilities             - Nearby facilities (?type=&near=lat,lng&limit=)
//   - GET  /api/facilities/{id}        - One facility
//
// Streaming sends emit the SSE events start, token (cumulative text),
// complete and error.
//
// # Middleware
//
// Every request passes through panic recovery, request logging, security
// headers, CORS and a per-client token bucket (golang.org/x/time/rate).
//
// # Usage
//
//	srv := server.New(cfg.Server.Addr, store, client, directory).
//		WithLogger(logger).
//		WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst)
//	err := srv.Start(ctx)
package server
