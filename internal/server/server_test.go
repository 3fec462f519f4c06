// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echomed/drecho/internal/assistant"
	"github.com/echomed/drecho/internal/conversation"
	"github.com/echomed/drecho/internal/facilities"
	"github.com/echomed/drecho/internal/fallback"
	"github.com/echomed/drecho/internal/model"
	"github.com/echomed/drecho/internal/storage"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	srv    *Server
	store  *conversation.Store
	client *assistant.Client
	h      http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := assistant.New(assistant.Config{},
		assistant.WithLogger(quietLogger),
		assistant.WithFallback(fallback.New(fallback.WithDelay(0), fallback.WithLogger(quietLogger))),
	)
	store, err := conversation.New(context.Background(), client, storage.NewMemory(), conversation.WithLogger(quietLogger))
	require.NoError(t, err)

	srv := New("", store, client, nil).WithLogger(quietLogger).WithRateLimit(0, 0)
	return &fixture{srv: srv, store: store, client: client, h: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// HEALTH AND STATUS
// =============================================================================

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status, "no API key means fallback mode")
	assert.True(t, resp.FallbackActive)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAssistantStatus(t *testing.T) {
	f := newFixture(t)
	resp := decode[AssistantStatusResponse](t, f.do(t, http.MethodGet, "/api/assistant/status", ""))
	assert.False(t, resp.Initialized)
	assert.True(t, resp.FallbackActive)
	assert.Equal(t, "gemini-1.5-pro", resp.Model)
}

// =============================================================================
// CONVERSATION
// =============================================================================

func TestConversation_InitialState(t *testing.T) {
	f := newFixture(t)
	resp := decode[ConversationResponse](t, f.do(t, http.MethodGet, "/api/conversation", ""))
	assert.False(t, resp.Open)
	require.Len(t, resp.Messages, 1, "system prompt is hidden")
	assert.Equal(t, model.Greeting, resp.Messages[0].Content)
}

func TestConversation_OpenClose(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/conversation/open", "").Code)
	assert.True(t, f.store.IsOpen())

	f.do(t, http.MethodPost, "/api/conversation/close", "")
	f.do(t, http.MethodPost, "/api/conversation/close", "")
	assert.False(t, f.store.IsOpen())
}

func TestSendMessage_JSON(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/conversation/messages", `{"content":"I have a headache"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SendMessageResponse](t, rec)
	assert.Equal(t, model.RoleAssistant, resp.Message.Role)
	assert.True(t, strings.HasPrefix(resp.Message.Content, "Headaches can be caused"))
	assert.Len(t, f.store.Messages(), 4)
	assert.Equal(t, int64(1), f.srv.Stats().Snapshot().MessagesSent)
}

func TestSendMessage_JSONConcurrentRepliesMatchRequests(t *testing.T) {
	f := newFixture(t)
	questions := []string{"I have a headache", "hello", "what about diet?", "any exercise tips"}

	var wg sync.WaitGroup
	replies := make([]SendMessageResponse, len(questions))
	for i, q := range questions {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			body, _ := json.Marshal(SendMessageRequest{Content: q})
			rec := f.do(t, http.MethodPost, "/api/conversation/messages", string(body))
			if rec.Code == http.StatusOK {
				_ = json.Unmarshal(rec.Body.Bytes(), &replies[i])
			}
		}(i, q)
	}
	wg.Wait()

	for i, q := range questions {
		want := f.client.Fallback().Respond(model.Transcript{model.NewUserMessage(q)})
		assert.Equal(t, want, replies[i].Message.Content, "reply to %q", q)
	}
	assert.Len(t, f.store.Messages(), 2+2*len(questions))
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	tests := map[string]string{
		"blank":    `{"content":"   "}`,
		"bad json": `{"content":`,
		"unknown":  `{"text":"hi"}`,
		"too long": `{"content":"` + strings.Repeat("a", MaxMessageRunes+1) + `"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/conversation/messages", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error.Message)
		})
	}
	assert.Len(t, f.store.Messages(), 2)
}

func TestSendMessage_SSE(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/conversation/messages", `{"content":"hello"}`, "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var events []string
	var lastData string
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, name)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			lastData = data
		}
	}
	require.NotEmpty(t, events)
	assert.Equal(t, "start", events[0])
	assert.Equal(t, "complete", events[len(events)-1])
	assert.Contains(t, events, "token")

	var complete map[string]string
	require.NoError(t, json.Unmarshal([]byte(lastData), &complete))
	last, _ := f.store.Messages().Last()
	assert.Equal(t, last.Content, complete["text"])
	assert.Equal(t, f.client.Fallback().Respond(f.store.Messages()[:3]), complete["text"])
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/conversation/messages", `{"content":"hello"}`)
	require.Len(t, f.store.Messages(), 4)

	resp := decode[ConversationResponse](t, f.do(t, http.MethodPost, "/api/conversation/clear", ""))
	assert.Len(t, resp.Messages, 1)
	assert.Len(t, f.store.Messages(), 2)
}

// =============================================================================
// WELLNESS
// =============================================================================

func TestWellnessScore(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/wellness/score", `{"mood":7,"anxiety":3,"sleep":8,"energy":6,"focus":7}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[WellnessScoreResponse](t, rec)
	assert.Equal(t, 71, resp.Score)
	assert.Equal(t, "Good", resp.Labels["mood"])
	assert.Equal(t, "N/A", resp.Labels["sleep"])

	bad := f.do(t, http.MethodPost, "/api/wellness/score", `{"mood":0}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestWellnessConsult(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/wellness/consult", `{"mood":5,"anxiety":5,"sleep":5,"energy":5,"focus":5,"journal":"busy week"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, f.store.IsOpen())
	msgs := f.store.Messages()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[2].Content, "Journal Entry: busy week")
	assert.Equal(t, int64(1), f.srv.Stats().Snapshot().Consults)
}

// =============================================================================
// FACILITIES
// =============================================================================

func TestFacilities(t *testing.T) {
	f := newFixture(t)

	resp := decode[FacilitiesResponse](t, f.do(t, http.MethodGet, "/api/facilities", ""))
	assert.Equal(t, facilities.DefaultCenter, resp.Center)
	assert.Len(t, resp.Facilities, 6)

	resp = decode[FacilitiesResponse](t, f.do(t, http.MethodGet, "/api/facilities?type=hospital&near=28.5278,77.2148&limit=1", ""))
	require.Len(t, resp.Facilities, 1)
	assert.Equal(t, "Max Super Speciality Hospital", resp.Facilities[0].Name)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/facilities?type=spa", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/facilities?near=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/facilities?limit=-1", "").Code)
}

func TestFacilityByID(t *testing.T) {
	f := newFixture(t)
	fac := decode[facilities.Facility](t, f.do(t, http.MethodGet, "/api/facilities/5", ""))
	assert.Equal(t, facilities.TypeClinic, fac.Type)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/facilities/99", "").Code)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestRateLimit(t *testing.T) {
	f := newFixture(t)
	f.srv.WithRateLimit(1, 2)
	h := f.srv.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.Clients())
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	f.srv.WithCORSOrigin("https://echomed.example")
	h := f.srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/conversation", nil)
	req.Header.Set("Origin", "https://echomed.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://echomed.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	h := Recovery(quietLogger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.9:5555", "", "203.0.113.9"},
		{"untrusted proxy header ignored", "203.0.113.9:5555", "1.2.3.4", "203.0.113.9"},
		{"trusted proxy", "127.0.0.1:5555", "198.51.100.7, 10.0.0.1", "198.51.100.7"},
		{"trusted proxy bad header", "10.1.2.3:80", "not-an-ip", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestStartAndShutdown(t *testing.T) {
	f := newFixture(t)
	srv := New("127.0.0.1:0", f.store, f.client, nil).WithLogger(quietLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return !strings.HasSuffix(srv.Addr(), ":0") }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
