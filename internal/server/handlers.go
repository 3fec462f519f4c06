// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/echomed/drecho/internal/facilities"
	"github.com/echomed/drecho/internal/model"
	"github.com/echomed/drecho/internal/wellness"
)

// ============================================================================
// HEALTH AND STATUS
// ============================================================================

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	UptimeSecs     int64  `json:"uptime_secs"`
	FallbackActive bool   `json:"fallback_active"`
	Requests       int64  `json:"requests"`
	MessagesSent   int64  `json:"messages_sent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	status := s.assistant.Status()

	resp := HealthResponse{
		Status:         "ok",
		Version:        Version,
		UptimeSecs:     int64(s.stats.Uptime().Seconds()),
		FallbackActive: status.FallbackActive,
		Requests:       snap.TotalRequests,
		MessagesSent:   snap.MessagesSent,
	}
	if status.FallbackActive {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// AssistantStatusResponse is returned by GET /api/assistant/status.
type AssistantStatusResponse struct {
	Initialized    bool   `json:"initialized"`
	FallbackActive bool   `json:"fallback_active"`
	LastError      string `json:"last_error,omitempty"`
	Model          string `json:"model"`
	Backend        string `json:"backend"`
}

func (s *Server) handleAssistantStatus(w http.ResponseWriter, r *http.Request) {
	st := s.assistant.Status()
	writeJSON(w, http.StatusOK, AssistantStatusResponse{
		Initialized:    st.Initialized,
		FallbackActive: st.FallbackActive,
		LastError:      st.LastErrorString(),
		Model:          st.Model,
		Backend:        st.Backend,
	})
}

// ============================================================================
// CONVERSATION
// ============================================================================

// ConversationResponse describes the store state. System messages are
// omitted.
type ConversationResponse struct {
	Open     bool            `json:"open"`
	Typing   bool            `json:"typing"`
	Partial  string          `json:"partial,omitempty"`
	Messages []model.Message `json:"messages"`
}

func (s *Server) conversationState() ConversationResponse {
	return ConversationResponse{
		Open:     s.store.IsOpen(),
		Typing:   s.store.IsTyping(),
		Partial:  s.store.Partial(),
		Messages: s.store.Messages().Visible(),
	}
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.conversationState())
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.store.Open()
	writeJSON(w, http.StatusOK, map[string]bool{"open": true})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.store.Close()
	writeJSON(w, http.StatusOK, map[string]bool{"open": false})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not clear saved conversation")
		return
	}
	writeJSON(w, http.StatusOK, s.conversationState())
}

// SendMessageRequest is the body of POST /api/conversation/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
	Stream  *bool  `json:"stream,omitempty"`
}

// SendMessageResponse is the non-streaming reply.
type SendMessageResponse struct {
	Message model.Message `json:"message"`
}

// wantsStream decides between SSE and a single JSON reply. An explicit
// "stream" field wins; otherwise the Accept header decides.
func wantsStream(r *http.Request, req SendMessageRequest) bool {
	if req.Stream != nil {
		return *req.Stream
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content must not be empty")
		return
	}
	if err := validateContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if wantsStream(r, req) {
		s.streamMessage(w, r, req.Content)
		return
	}

	reply, err := s.store.Ask(r.Context(), req.Content)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled before it could be sent")
		return
	}
	s.stats.recordMessage(false)
	writeJSON(w, http.StatusOK, SendMessageResponse{Message: reply})
}

// sseSink writes a send's callbacks as server-sent events.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *sseSink) event(name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", name, data)
	e.flusher.Flush()
}

func (e *sseSink) OnStart()                { e.event("start", struct{}{}) }
func (e *sseSink) OnToken(partial string)  { e.event("token", map[string]string{"text": partial}) }
func (e *sseSink) OnComplete(final string) { e.event("complete", map[string]string{"text": final}) }
func (e *sseSink) OnError(err error)       { e.event("error", map[string]string{"error": err.Error()}) }

func (s *Server) streamMessage(w http.ResponseWriter, r *http.Request, content string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	if err := s.store.SendStreaming(r.Context(), content, sink); err != nil {
		sink.OnError(err)
		return
	}
	s.stats.recordMessage(false)
}

// ============================================================================
// WELLNESS
// ============================================================================

// WellnessScoreResponse is returned by POST /api/wellness/score.
type WellnessScoreResponse struct {
	Score  int               `json:"score"`
	Band   string            `json:"band"`
	Labels map[string]string `json:"labels"`
}

func (s *Server) decodeAssessment(w http.ResponseWriter, r *http.Request) (wellness.Assessment, bool) {
	a := wellness.DefaultAssessment()
	if err := decodeBody(w, r, &a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return a, false
	}
	if err := a.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return a, false
	}
	return a, true
}

func (s *Server) handleWellnessScore(w http.ResponseWriter, r *http.Request) {
	a, ok := s.decodeAssessment(w, r)
	if !ok {
		return
	}
	labels := make(map[string]string, len(wellness.Metrics))
	for _, m := range wellness.Metrics {
		labels[string(m)] = wellness.Label(m, a.Value(m))
	}
	score := a.Score()
	writeJSON(w, http.StatusOK, WellnessScoreResponse{
		Score:  score,
		Band:   wellness.ScoreBand(score),
		Labels: labels,
	})
}

func (s *Server) handleWellnessConsult(w http.ResponseWriter, r *http.Request) {
	a, ok := s.decodeAssessment(w, r)
	if !ok {
		return
	}
	if err := validateContent(a.Journal); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply, err := wellness.Consult(r.Context(), s.store, a)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled before it could be sent")
		return
	}
	s.stats.recordMessage(true)
	writeJSON(w, http.StatusOK, SendMessageResponse{Message: reply})
}

// ============================================================================
// FACILITIES
// ============================================================================

// FacilitiesResponse is returned by GET /api/facilities.
type FacilitiesResponse struct {
	Center     facilities.Point    `json:"center"`
	Facilities []facilities.Result `json:"facilities"`
}

func (s *Server) handleFacilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, err := facilities.ParseType(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	center := facilities.DefaultCenter
	if near := q.Get("near"); near != "" {
		if center, err = facilities.ParsePoint(near); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	limit := 0
	if l := q.Get("limit"); l != "" {
		if limit, err = strconv.Atoi(l); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
	}

	writeJSON(w, http.StatusOK, FacilitiesResponse{
		Center:     center,
		Facilities: s.directory.Nearest(center, limit, kind),
	})
}

func (s *Server) handleFacility(w http.ResponseWriter, r *http.Request) {
	f, ok := s.directory.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "facility not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}
