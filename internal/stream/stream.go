// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream defines the callback contract shared by every producer of
// incremental assistant text.
//
// Tokens are cumulative: each OnToken call carries the full text generated
// so far, not the delta since the previous call. For a single request the
// calls arrive in the order OnStart, zero or more OnToken, then OnComplete.
// OnError may precede a fallback run that again ends in OnComplete.
package stream

import "sync"

// Sink receives streaming callbacks.
type Sink interface {
	OnStart()
	OnToken(partial string)
	OnComplete(final string)
	OnError(err error)
}

// =============================================================================
// FUNCS ADAPTER
// =============================================================================

// Funcs adapts optional callback functions to a Sink. Nil fields are skipped.
type Funcs struct {
	Start    func()
	Token    func(partial string)
	Complete func(final string)
	Error    func(err error)
}

// OnStart implements Sink.
func (f Funcs) OnStart() {
	if f.Start != nil {
		f.Start()
	}
}

// OnToken implements Sink.
func (f Funcs) OnToken(partial string) {
	if f.Token != nil {
		f.Token(partial)
	}
}

// OnComplete implements Sink.
func (f Funcs) OnComplete(final string) {
	if f.Complete != nil {
		f.Complete(final)
	}
}

// OnError implements Sink.
func (f Funcs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// Discard is a Sink that ignores every callback.
var Discard Sink = Funcs{}

// =============================================================================
// RECORDER
// =============================================================================

// Event names recorded by Recorder, in call order.
const (
	EventStart    = "start"
	EventToken    = "token"
	EventComplete = "complete"
	EventError    = "error"
)

// Recorder is a Sink that keeps every callback it receives. It is safe for
// concurrent use.
type Recorder struct {
	mu        sync.Mutex
	events    []string
	tokens    []string
	errs      []error
	final     string
	completed int
}

// OnStart implements Sink.
func (r *Recorder) OnStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, EventStart)
}

// OnToken implements Sink.
func (r *Recorder) OnToken(partial string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, EventToken)
	r.tokens = append(r.tokens, partial)
}

// OnComplete implements Sink.
func (r *Recorder) OnComplete(final string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, EventComplete)
	r.final = final
	r.completed++
}

// OnError implements Sink.
func (r *Recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, EventError)
	r.errs = append(r.errs, err)
}

// Events returns the callback names in the order they were received.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Tokens returns every partial text received.
func (r *Recorder) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

// Errors returns every error received.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// Final returns the text passed to the last OnComplete call.
func (r *Recorder) Final() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.final
}

// Completed returns how many times OnComplete was called.
func (r *Recorder) Completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}
