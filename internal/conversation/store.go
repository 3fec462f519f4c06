// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/echomed/drecho/internal/model"
	"github.com/echomed/drecho/internal/storage"
	"github.com/echomed/drecho/internal/stream"
)

// StorageKey is the key the transcript is persisted under.
const StorageKey = "drEchoMessages"

const (
	// StreamErrorReply is appended when a reply stream reports an error or
	// ends without completing.
	StreamErrorReply = "I'm sorry, I encountered an error processing your request. Please try again."

	// SendErrorReply is appended when the completion call itself fails.
	SendErrorReply = "I'm sorry, there was an error processing your request. Please try again."
)

var (
	// ErrNilClient is returned by New without a completer.
	ErrNilClient = errors.New("conversation: nil completion client")

	// ErrNilStorage is returned by New without a key-value store.
	ErrNilStorage = errors.New("conversation: nil storage")
)

// Completer streams a reply for a transcript. *assistant.Client implements it.
type Completer interface {
	CompleteStreaming(ctx context.Context, t model.Transcript, sink stream.Sink)
}

// =============================================================================
// STORE
// =============================================================================

// Store owns a transcript and its persistence. It is safe for concurrent use.
type Store struct {
	client Completer
	kv     storage.KV
	logger *slog.Logger

	mu       sync.RWMutex
	messages model.Transcript
	open     bool
	typing   bool
	partial  string

	// slot admits one Send or Clear at a time.
	slot chan struct{}

	hub hub
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a store and restores any persisted transcript from kv. A
// missing or unreadable record starts a fresh session from the seed
// messages; only nil dependencies are errors.
func New(ctx context.Context, client Completer, kv storage.KV, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if kv == nil {
		return nil, ErrNilStorage
	}

	s := &Store{
		client: client,
		kv:     kv,
		logger: slog.Default(),
		slot:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "conversation")

	s.messages = s.restore(ctx)
	return s, nil
}

func (s *Store) restore(ctx context.Context) model.Transcript {
	data, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.Error("error loading messages", "error", err)
		}
		return model.NewTranscript()
	}

	t, err := Decode(data)
	if err != nil {
		s.logger.Error("error parsing saved messages", "error", err)
		return model.NewTranscript()
	}
	s.logger.Debug("restored conversation", "messages", t.Len())
	return t
}

// Decode parses a persisted transcript. Timestamps are RFC 3339 strings;
// the result always leads with exactly one system message.
func Decode(data []byte) (model.Transcript, error) {
	var t model.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	for i, m := range t {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("decode transcript: message %d has unknown role %q", i, m.Role)
		}
	}
	return t.EnsureSystem(), nil
}

// Encode serializes a transcript for storage.
func Encode(t model.Transcript) ([]byte, error) {
	return json.Marshal(t)
}

// persist writes the transcript when it holds more than the seeds. Failures
// are logged; the in-memory transcript stays authoritative.
func (s *Store) persist(ctx context.Context, t model.Transcript) {
	if t.IsSeedOnly() {
		return
	}
	data, err := Encode(t)
	if err != nil {
		s.logger.Error("error encoding messages", "error", err)
		return
	}
	if err := s.kv.Set(context.WithoutCancel(ctx), StorageKey, data); err != nil {
		s.logger.Error("error saving messages", "error", err)
	}
}

// =============================================================================
// VISIBILITY
// =============================================================================

// Open marks the assistant panel visible.
func (s *Store) Open() { s.setOpen(true) }

// Close marks the assistant panel hidden.
func (s *Store) Close() { s.setOpen(false) }

func (s *Store) setOpen(open bool) {
	s.mu.Lock()
	changed := s.open != open
	s.open = open
	s.mu.Unlock()
	if changed {
		s.hub.publish(Event{Type: EventVisibility, Open: open})
	}
}

// IsOpen reports whether the assistant panel is visible.
func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// =============================================================================
// READERS
// =============================================================================

// Messages returns a copy of the transcript.
func (s *Store) Messages() model.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.Clone()
}

// IsTyping reports whether a reply is being generated.
func (s *Store) IsTyping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// Partial returns the reply text streamed so far, or "" when idle.
func (s *Store) Partial() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partial
}

// =============================================================================
// MUTATIONS
// =============================================================================

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.slot }

// Send appends text as a user message and streams the assistant's reply
// into the transcript. Blank input is ignored. The only error is the
// context's, when it ends before the send is admitted; once admitted, the
// send always finishes with an appended assistant message.
func (s *Store) Send(ctx context.Context, text string) error {
	_, err := s.send(ctx, text, nil)
	return err
}

// Ask is Send returning the last assistant message appended for this call.
// It returns the zero Message for blank input.
func (s *Store) Ask(ctx context.Context, text string) (model.Message, error) {
	return s.send(ctx, text, nil)
}

// SendStreaming is Send with a per-call observer. The observer sees OnStart,
// the cumulative OnToken text and any OnError of this send only, then
// exactly one OnComplete carrying the last assistant message appended.
// Nothing is reported for blank input or a send abandoned while waiting.
func (s *Store) SendStreaming(ctx context.Context, text string, observer stream.Sink) error {
	_, err := s.send(ctx, text, observer)
	return err
}

func (s *Store) send(ctx context.Context, text string, observer stream.Sink) (model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return model.Message{}, nil
	}
	if observer == nil {
		observer = stream.Discard
	}
	if err := s.acquire(ctx); err != nil {
		return model.Message{}, err
	}
	defer s.release()

	t := s.append(ctx, model.NewUserMessage(text))
	s.setTyping(true)

	sink := &replySink{ctx: ctx, store: s, observer: observer}
	reply, ok := s.complete(ctx, t, sink)

	msg, apologized := sink.apology()
	if ok || !apologized {
		msg = model.NewAssistantMessage(reply)
		s.append(ctx, msg)
	}
	s.setTyping(false)
	observer.OnComplete(msg.Content)
	return msg, nil
}

// complete runs one streaming completion. ok is false when the stream ended
// without a completion; reply is then the apology to append.
func (s *Store) complete(ctx context.Context, t model.Transcript, sink *replySink) (reply string, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("error sending message", "panic", p)
			reply, ok = SendErrorReply, true
		}
	}()

	s.client.CompleteStreaming(ctx, t, sink)

	if final, done := sink.result(); done {
		return final, true
	}
	s.logger.Error("reply stream ended without completion", "errors", sink.errCount())
	return StreamErrorReply, false
}

// append adds msg, persists, notifies subscribers and returns the new transcript.
func (s *Store) append(ctx context.Context, msg model.Message) model.Transcript {
	s.mu.Lock()
	s.messages = s.messages.Append(msg)
	t := s.messages
	s.mu.Unlock()

	s.persist(ctx, t)
	s.hub.publish(Event{Type: EventMessage, Message: msg})
	return t
}

func (s *Store) setTyping(typing bool) {
	s.mu.Lock()
	s.typing = typing
	s.partial = ""
	s.mu.Unlock()
	s.hub.publish(Event{Type: EventTyping, Typing: typing})
}

func (s *Store) setPartial(text string) {
	s.mu.Lock()
	s.partial = text
	s.mu.Unlock()
	s.hub.publish(Event{Type: EventPartial, Partial: text})
}

// Clear resets the transcript to the seed messages and deletes the
// persisted record. It waits for an in-flight Send to finish.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	s.messages = model.NewTranscript()
	s.partial = ""
	s.mu.Unlock()

	err := s.kv.Delete(context.WithoutCancel(ctx), StorageKey)
	s.hub.publish(Event{Type: EventCleared})
	if err != nil && !storage.IsNotFound(err) {
		s.logger.Error("error clearing saved messages", "error", err)
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}

// =============================================================================
// REPLY SINK
// =============================================================================

// replySink mirrors a streaming reply into the store's partial text and
// the send's observer, and captures the first completion. The first error
// appends StreamErrorReply and clears typing; a fallback reply that
// follows resumes typing and is appended on completion.
type replySink struct {
	ctx      context.Context
	store    *Store
	observer stream.Sink

	mu        sync.Mutex
	final     string
	completed bool
	errs      int
	apologyMsg model.Message
}

func (r *replySink) OnStart() {
	r.observer.OnStart()
}

func (r *replySink) OnToken(partial string) {
	if !r.store.IsTyping() {
		r.store.setTyping(true)
	}
	r.store.setPartial(partial)
	r.observer.OnToken(partial)
}

func (r *replySink) OnComplete(final string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed {
		return
	}
	r.final = final
	r.completed = true
}

func (r *replySink) OnError(err error) {
	r.mu.Lock()
	r.errs++
	first := r.errs == 1
	if first {
		r.apologyMsg = model.NewAssistantMessage(StreamErrorReply)
	}
	msg := r.apologyMsg
	r.mu.Unlock()

	r.store.logger.Warn("error streaming reply", "error", err)
	if first {
		r.store.append(r.ctx, msg)
		r.store.setTyping(false)
	}
	r.observer.OnError(err)
}

func (r *replySink) result() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.final, r.completed
}

// apology returns the message appended by the first OnError, if any.
func (r *replySink) apology() (model.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apologyMsg, r.errs > 0
}

func (r *replySink) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}
