// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini provides a REST client for the Google Gemini generative
// language API.
//
// # Key Types
//
//   - Client: HTTP client for generateContent and streamGenerateContent
//   - GenerateRequest: Request body with contents, generation config and safety settings
//   - GenerateResponse: Candidate list returned by the API (or one SSE chunk)
//   - APIError: Error payload returned by the API
//   - StreamError: Streaming failure that keeps the text received so far
//
// # Usage
//
//	client := gemini.NewClient(apiKey).WithModel("gemini-1.5-pro")
//	req := gemini.NewRequest(transcript)
//	resp, err := client.GenerateContent(ctx, req)
//
// Streaming delivers each chunk as it arrives:
//
//	err := client.StreamGenerateContent(ctx, req, func(chunk *gemini.GenerateResponse) error {
//	    fmt.Print(chunk.Text())
//	    return nil
//	})
package gemini
