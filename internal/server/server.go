// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/echomed/drecho/internal/assistant"
	"github.com/echomed/drecho/internal/conversation"
	"github.com/echomed/drecho/internal/facilities"
)

// Version is reported by /health. Set by main.
var Version = "dev"

const (
	// DefaultAddr is the loopback listener used when none is configured.
	DefaultAddr = "127.0.0.1:8787"

	// MaxMessageRunes bounds a single user message.
	MaxMessageRunes = 8000

	maxBodyBytes = 64 << 10
)

// StatusReporter exposes the assistant's service status. *assistant.Client
// implements it.
type StatusReporter interface {
	Status() assistant.Status
}

// ============================================================================
// STATS
// ============================================================================

// Stats counts API activity since start.
type Stats struct {
	mu sync.Mutex

	StartTime     time.Time
	TotalRequests int64
	MessagesSent  int64
	Consults      int64
}

// NewStats creates stats starting now.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

func (s *Stats) recordRequest() {
	s.mu.Lock()
	s.TotalRequests++
	s.mu.Unlock()
}

func (s *Stats) recordMessage(consult bool) {
	s.mu.Lock()
	s.MessagesSent++
	if consult {
		s.Consults++
	}
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		StartTime:     s.StartTime,
		TotalRequests: s.TotalRequests,
		MessagesSent:  s.MessagesSent,
		Consults:      s.Consults,
	}
}

// Uptime returns the time since start.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the conversation store, the wellness check-in and the
// facility directory over HTTP.
type Server struct {
	addr      string
	router    *http.ServeMux
	server    *http.Server
	listener  net.Listener
	store     *conversation.Store
	assistant StatusReporter
	directory *facilities.Directory
	logger    *slog.Logger
	stats     *Stats
	limiter   *RateLimiter
	cors      *CORSConfig

	mu sync.Mutex
}

// New creates a server. The store and assistant are required; a nil
// directory falls back to the built-in catalog.
func New(addr string, store *conversation.Store, status StatusReporter, directory *facilities.Directory) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if directory == nil {
		directory = facilities.NewDirectory(facilities.DefaultCatalog())
	}
	s := &Server{
		addr:      addr,
		router:    http.NewServeMux(),
		store:     store,
		assistant: status,
		directory: directory,
		logger:    slog.Default().With("component", "server"),
		stats:     NewStats(),
		limiter:   NewRateLimiter(5, 10),
		cors:      DefaultCORSConfig(),
	}
	s.setupRoutes()
	return s
}

// WithLogger sets the logger.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	if logger != nil {
		s.logger = logger.With("component", "server")
	}
	return s
}

// WithRateLimit sets the per-client request rate and burst.
func (s *Server) WithRateLimit(perSecond float64, burst int) *Server {
	s.limiter = NewRateLimiter(perSecond, burst)
	return s
}

// WithCORSOrigin allows an additional browser origin.
func (s *Server) WithCORSOrigin(origin string) *Server {
	s.cors = s.cors.WithOrigin(origin)
	return s
}

// Addr returns the configured listen address, or the bound address once
// the server is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stats returns the activity counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /api/assistant/status", s.handleAssistantStatus)

	s.router.HandleFunc("GET /api/conversation", s.handleConversation)
	s.router.HandleFunc("POST /api/conversation/open", s.handleOpen)
	s.router.HandleFunc("POST /api/conversation/close", s.handleClose)
	s.router.HandleFunc("POST /api/conversation/clear", s.handleClear)
	s.router.HandleFunc("POST /api/conversation/messages", s.handleSendMessage)

	s.router.HandleFunc("POST /api/wellness/score", s.handleWellnessScore)
	s.router.HandleFunc("POST /api/wellness/consult", s.handleWellnessConsult)

	s.router.HandleFunc("GET /api/facilities", s.handleFacilities)
	s.router.HandleFunc("GET /api/facilities/{id}", s.handleFacility)
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	count := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.stats.recordRequest()
			next.ServeHTTP(w, r)
		})
	}
	return Chain(
		Recovery(s.logger),
		Logging(s.logger),
		SecurityHeaders(),
		CORS(s.cors),
		RateLimit(s.limiter),
		count,
	)(s.router)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start listens and serves until Shutdown is called or ctx ends.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Replies stream for as long as the model talks; no write timeout.
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("server started", "addr", ln.Addr().String(), "version", Version)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	snap := s.stats.Snapshot()
	s.logger.Info("server shutting down",
		"requests", snap.TotalRequests,
		"messages", snap.MessagesSent,
		"uptime", s.stats.Uptime().Round(time.Second),
	)
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Message: message, Code: status}})
}

// decodeBody reads a JSON request body of at most maxBodyBytes.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func validateContent(content string) error {
	if utf8.RuneCountInString(content) > MaxMessageRunes {
		return fmt.Errorf("message too long (max %d characters)", MaxMessageRunes)
	}
	if !utf8.ValidString(content) {
		return errors.New("message is not valid UTF-8")
	}
	return nil
}
