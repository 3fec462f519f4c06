// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxChunkSize is the largest single SSE event accepted (1MB).
const MaxChunkSize = 1024 * 1024

// ChunkFunc receives each streamed chunk. Returning an error stops the stream.
type ChunkFunc func(chunk *GenerateResponse) error

// StreamError is a failure during streaming that keeps any text received
// before the error.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next event and returns its type and data. Multiple
// data lines are joined with newlines. Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var data [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(line) > 0 {
					if payload, ok := parseDataLine(bytes.TrimRight(line, "\r\n")); ok {
						data = append(data, payload)
					}
				}
				if len(data) > 0 {
					return eventType, bytes.Join(data, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(data) > 0 {
				return eventType, bytes.Join(data, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("event:")) {
			eventType = string(bytes.TrimSpace(line[6:]))
			continue
		}
		if payload, ok := parseDataLine(line); ok {
			size += len(payload)
			if size > MaxChunkSize {
				return "", nil, fmt.Errorf("SSE event exceeds %d bytes", MaxChunkSize)
			}
			data = append(data, payload)
		}
		// id:, retry: and comment lines are ignored.
	}
}

func parseDataLine(line []byte) ([]byte, bool) {
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	return bytes.TrimPrefix(line[5:], []byte(" ")), true
}

// =============================================================================
// STREAMING GENERATE CONTENT
// =============================================================================

// StreamGenerateContent performs a streaming request against
// streamGenerateContent with alt=sse and calls fn for every chunk.
// Streams are not retried: a failure after the first chunk returns a
// StreamError holding the partial text.
func (c *Client) StreamGenerateContent(ctx context.Context, body *GenerateRequest, fn ChunkFunc) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	endpoint := c.endpoint("streamGenerateContent", url.Values{"alt": {"sse"}})
	req, err := c.newRequest(ctx, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.logRequest(req)
	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		data, _ := readResponse(resp)
		return handleErrorResponse(resp.StatusCode, data)
	}

	return c.processStream(ctx, resp.Body, fn)
}

func (c *Client) processStream(ctx context.Context, body io.Reader, fn ChunkFunc) error {
	reader := NewSSEReader(body)
	var accumulated strings.Builder
	chunks := 0

	fail := func(err error) error {
		return &StreamError{Partial: accumulated.String(), Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		_, data, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr)
			}
			return fail(err)
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}

		var chunk GenerateResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			var apiErr apiErrorResponse
			if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
				return fail(&APIError{Status: apiErr.Error.Code, Code: apiErr.Error.Status, Message: apiErr.Error.Message})
			}
			c.logger.Debug("skipping malformed stream chunk", "error", err)
			continue
		}
		if reason := chunk.BlockReason(); reason != "" {
			return fail(fmt.Errorf("%w: %s", ErrBlocked, reason))
		}

		chunks++
		accumulated.WriteString(chunk.Text())
		if err := fn(&chunk); err != nil {
			return fail(err)
		}
	}

	if chunks == 0 {
		return ErrEmptyResponse
	}
	return nil
}
