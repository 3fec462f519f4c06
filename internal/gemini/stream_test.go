// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echomed/drecho/internal/model"
)

func sseChunk(text string) string {
	return fmt.Sprintf("data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":%q}]}}]}\r\n\r\n", text)
}

// =============================================================================
// SSE READER
// =============================================================================

func TestSSEReader_ReadEvent(t *testing.T) {
	input := ": comment\n" +
		"event: message\n" +
		"data: first\n\n" +
		"data: multi\n" +
		"data: line\n\n" +
		"id: 7\n" +
		"data:nospace"

	r := NewSSEReader(strings.NewReader(input))

	typ, data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "message", typ)
	assert.Equal(t, "first", string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "multi\nline", string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "nospace", string(data))

	_, _, err = r.ReadEvent()
	assert.ErrorIs(t, err, io.EOF)
}

// =============================================================================
// STREAM GENERATE CONTENT
// =============================================================================

func TestStreamGenerateContent(t *testing.T) {
	var gotPath, gotAlt string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAlt = r.URL.Query().Get("alt")
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseChunk("Drink "))
		io.WriteString(w, sseChunk("more "))
		io.WriteString(w, sseChunk("water."))
	})

	var deltas []string
	err := client.StreamGenerateContent(context.Background(), NewRequest(model.NewTranscript()), func(c *GenerateResponse) error {
		deltas = append(deltas, c.Text())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Drink ", "more ", "water."}, deltas)
	assert.Equal(t, "/models/gemini-1.5-pro:streamGenerateContent", gotPath)
	assert.Equal(t, "sse", gotAlt)
}

func TestStreamGenerateContent_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`)
	})

	err := client.StreamGenerateContent(context.Background(), NewRequest(model.NewTranscript()), func(*GenerateResponse) error { return nil })
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestStreamGenerateContent_CallbackErrorKeepsPartial(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sseChunk("one "))
		io.WriteString(w, sseChunk("two "))
	})

	stop := errors.New("stop")
	calls := 0
	err := client.StreamGenerateContent(context.Background(), NewRequest(model.NewTranscript()), func(*GenerateResponse) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "one two ", streamErr.Partial)
}

func TestStreamGenerateContent_EmptyStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
	})

	err := client.StreamGenerateContent(context.Background(), NewRequest(model.NewTranscript()), func(*GenerateResponse) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestStreamGenerateContent_BlockedMidStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sseChunk("Partial "))
		io.WriteString(w, "data: {\"candidates\":[{\"finishReason\":\"SAFETY\",\"content\":{\"parts\":[]}}]}\n\n")
	})

	err := client.StreamGenerateContent(context.Background(), NewRequest(model.NewTranscript()), func(*GenerateResponse) error { return nil })
	assert.ErrorIs(t, err, ErrBlocked)
}
