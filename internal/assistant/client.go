// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/echomed/drecho/internal/fallback"
	"github.com/echomed/drecho/internal/gemini"
	"github.com/echomed/drecho/internal/model"
	"github.com/echomed/drecho/internal/stream"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Backend kinds.
const (
	BackendREST      = "rest"
	BackendLangChain = "langchaingo"
)

// Config holds everything the client needs. Nothing is read from the
// environment; callers resolve the credential before construction.
type Config struct {
	APIKey     string
	Model      string
	Backend    string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func (c Config) withDefaults() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Model == "" {
		c.Model = gemini.DefaultModel
	}
	if c.Backend == "" {
		c.Backend = BackendREST
	}
	return c
}

// Status is a snapshot of the client's state.
type Status struct {
	Initialized    bool   `json:"initialized"`
	FallbackActive bool   `json:"fallback_active"`
	LastError      error  `json:"-"`
	Model          string `json:"model"`
	Backend        string `json:"backend"`
}

// LastErrorString returns the last error message, or "".
func (s Status) LastErrorString() string {
	if s.LastError == nil {
		return ""
	}
	return s.LastError.Error()
}

// =============================================================================
// BACKEND
// =============================================================================

// Backend is a remote model. Stream calls onDelta with each new piece of
// text in order.
type Backend interface {
	Generate(ctx context.Context, t model.Transcript) (string, error)
	Stream(ctx context.Context, t model.Transcript, onDelta func(delta string) error) error
}

// BackendFactory creates a Backend from a Config.
type BackendFactory func(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error)

// ErrUnknownBackend is returned for an unsupported Config.Backend.
var ErrUnknownBackend = errors.New("unknown backend")

// DefaultBackendFactory builds the backend named by cfg.Backend.
func DefaultBackendFactory(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case BackendREST:
		return newRESTBackend(cfg, logger)
	case BackendLangChain:
		return newLangChainBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client produces assistant replies. It is safe for concurrent use.
type Client struct {
	cfg        Config
	fallback   *fallback.Responder
	logger     *slog.Logger
	newBackend BackendFactory

	mu             sync.Mutex
	backend        Backend
	initialized    bool
	fallbackActive bool
	lastErr        error
}

// Option configures a Client.
type Option func(*Client)

// WithFallback sets the fallback responder.
func WithFallback(r *fallback.Responder) Option {
	return func(c *Client) {
		if r != nil {
			c.fallback = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBackendFactory replaces the backend constructor.
func WithBackendFactory(f BackendFactory) Option {
	return func(c *Client) {
		if f != nil {
			c.newBackend = f
		}
	}
}

// New creates a client. With an empty credential the client starts in
// fallback mode and logs a warning; no error is returned.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg.withDefaults(),
		logger:     slog.Default(),
		newBackend: DefaultBackendFactory,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "assistant")
	if c.fallback == nil {
		c.fallback = fallback.New(fallback.WithLogger(c.logger))
	}

	if c.cfg.APIKey == "" {
		c.fallbackActive = true
		c.logger.Warn("no Gemini API key found, running in offline fallback mode")
	}
	return c
}

// Status returns the current state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Initialized:    c.initialized,
		FallbackActive: c.fallbackActive,
		LastError:      c.lastErr,
		Model:          c.cfg.Model,
		Backend:        c.cfg.Backend,
	}
}

// Fallback returns the responder used in fallback mode.
func (c *Client) Fallback() *fallback.Responder {
	return c.fallback
}

// ensureInitialized creates the backend on first use. It returns nil when
// the client is in fallback mode.
func (c *Client) ensureInitialized(ctx context.Context) Backend {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fallbackActive {
		return nil
	}
	if c.initialized {
		return c.backend
	}

	backend, err := c.newBackend(ctx, c.cfg, c.logger)
	if err == nil && backend == nil {
		err = errors.New("backend factory returned nil")
	}
	if err != nil {
		c.lastErr = fmt.Errorf("initialize %s backend: %w", c.cfg.Backend, err)
		c.fallbackActive = true
		c.logger.Error("failed to initialize Gemini client", "backend", c.cfg.Backend, "error", err)
		return nil
	}

	c.backend = backend
	c.initialized = true
	c.logger.Info("Gemini client initialized", "backend", c.cfg.Backend, "model", c.cfg.Model)
	return backend
}

// markFailed records a request failure and switches to fallback mode.
func (c *Client) markFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.fallbackActive = true
}

// Complete returns a reply for t. Remote failures are logged and answered
// from the fallback responder; the only error returned is the context's.
func (c *Client) Complete(ctx context.Context, t model.Transcript) (string, error) {
	backend := c.ensureInitialized(ctx)
	if backend == nil {
		return c.fallback.Respond(t), nil
	}

	text, err := c.generate(ctx, backend, t)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		c.logger.Error("error generating response", "error", err)
		c.markFailed(err)
		return c.fallback.Respond(t), nil
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, backend Backend, t model.Transcript) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("backend panic: %v", p)
		}
	}()
	return backend.Generate(ctx, t)
}

// CompleteStreaming streams a reply for t to sink using cumulative text.
// On failure sink receives OnError and then the fallback stream, which
// always ends with OnComplete.
func (c *Client) CompleteStreaming(ctx context.Context, t model.Transcript, sink stream.Sink) {
	if sink == nil {
		sink = stream.Discard
	}

	backend := c.ensureInitialized(ctx)
	sink.OnStart()

	if backend == nil {
		c.logger.Warn("using fallback streaming response")
		c.fallback.RespondStreaming(ctx, t, sink)
		return
	}

	full, err := c.stream(ctx, backend, t, sink)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("error in streaming API call", "error", err)
			c.markFailed(err)
		}
		sink.OnError(err)
		c.fallback.RespondStreaming(ctx, t, sink)
		return
	}

	sink.OnComplete(full)
}

func (c *Client) stream(ctx context.Context, backend Backend, t model.Transcript, sink stream.Sink) (full string, err error) {
	var b strings.Builder
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("streaming panic: %v", p)
		}
	}()

	err = backend.Stream(ctx, t, func(delta string) error {
		if delta == "" {
			return nil
		}
		b.WriteString(delta)
		sink.OnToken(b.String())
		return nil
	})
	return b.String(), err
}
