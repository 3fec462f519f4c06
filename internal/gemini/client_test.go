// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echomed/drecho/internal/model"
)

const testKey = "AIzaSy-test-key-0123456789abcdef"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(testKey).WithBaseURL(server.URL).WithHTTPClient(server.Client())
}

func okResponse(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GenerateResponse{
		Candidates: []Candidate{{Content: Content{Role: RoleModel, Parts: []Part{{Text: text}}}, FinishReason: "STOP"}},
	})
}

// =============================================================================
// REQUEST SHAPE
// =============================================================================

func TestNewRequest_RoleMappingAndSettings(t *testing.T) {
	tr := model.NewTranscript().Append(model.NewUserMessage("I have a headache"))
	req := NewRequest(tr)

	require.Len(t, req.Contents, 3)
	assert.Equal(t, RoleModel, req.Contents[0].Role, "system maps to model")
	assert.Equal(t, RoleModel, req.Contents[1].Role, "assistant maps to model")
	assert.Equal(t, RoleUser, req.Contents[2].Role)
	assert.Equal(t, "I have a headache", req.Contents[2].Parts[0].Text)

	assert.Equal(t, 0.7, req.GenerationConfig.Temperature)
	assert.Equal(t, 40, req.GenerationConfig.TopK)
	assert.Equal(t, 0.95, req.GenerationConfig.TopP)
	assert.Equal(t, 1024, req.GenerationConfig.MaxOutputTokens)

	require.Len(t, req.SafetySettings, 4)
	for _, s := range req.SafetySettings {
		assert.Equal(t, BlockMediumAndAbove, s.Threshold, s.Category)
	}
}

func TestGenerateContent_SendsRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody GenerateRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		okResponse(w, "Stay hydrated.")
	}).WithModel("gemini-1.5-flash")

	resp, err := client.GenerateContent(context.Background(), NewRequest(model.NewTranscript()))
	require.NoError(t, err)

	assert.Equal(t, "Stay hydrated.", resp.Text())
	assert.Equal(t, "/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, testKey, gotKey)
	assert.Len(t, gotBody.Contents, 2)
	assert.Equal(t, "STOP", resp.FinishReason())
}

func TestGenerateContent_NotConfigured(t *testing.T) {
	_, err := NewClient("  ").GenerateContent(context.Background(), &GenerateRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

// =============================================================================
// ERROR HANDLING
// =============================================================================

func TestGenerateContent_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":401,"message":"bad","status":"UNAUTHENTICATED"}}`, ErrAuthFailed},
		{"invalid key", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, ErrAuthFailed},
		{"unknown model", http.StatusNotFound, `{"error":{"code":404,"message":"models/x is not found","status":"NOT_FOUND"}}`, ErrModelNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			_, err := client.GenerateContent(context.Background(), NewRequest(model.NewTranscript()))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
		})
	}
}

func TestGenerateContent_PlainBadRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"contents is empty","status":"INVALID_ARGUMENT"}}`)
	})

	_, err := client.GenerateContent(context.Background(), &GenerateRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_ARGUMENT", apiErr.Code)
	assert.False(t, errors.Is(err, ErrAuthFailed))
}

func TestGenerateContent_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
			return
		}
		okResponse(w, "recovered")
	})

	resp, err := client.GenerateContent(context.Background(), NewRequest(model.NewTranscript()))
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text())
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateContent_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
	}).WithMaxRetries(2)

	_, err := client.GenerateContent(context.Background(), NewRequest(model.NewTranscript()))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateContent_Blocked(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	})

	_, err := client.GenerateContent(context.Background(), NewRequest(model.NewTranscript()))
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestCalculateBackoff(t *testing.T) {
	c := NewClient(testKey)
	assert.Equal(t, retryBaseDelay, c.calculateBackoff(1))
	assert.Equal(t, 2*retryBaseDelay, c.calculateBackoff(2))
	assert.Equal(t, retryMaxDelay, c.calculateBackoff(10))
}

func TestValidateAPIKey(t *testing.T) {
	assert.ErrorIs(t, ValidateAPIKey(""), ErrNotConfigured)
	assert.Error(t, ValidateAPIKey("short"))
	assert.Error(t, ValidateAPIKey("AIzaSy with spaces 0123456789"))
	assert.NoError(t, ValidateAPIKey(testKey))
}

func TestKeyFingerprint(t *testing.T) {
	assert.Equal(t, "none", NewClient("").KeyFingerprint())
	fp := NewClient(testKey).KeyFingerprint()
	assert.Len(t, fp, 8)
	assert.NotContains(t, testKey, fp)
}
