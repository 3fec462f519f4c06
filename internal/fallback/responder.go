// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/echomed/drecho/internal/model"
	"github.com/echomed/drecho/internal/stream"
)

// =============================================================================
// CANNED REPLIES
// =============================================================================

// DefaultWordDelay is the pause before each streamed word.
const DefaultWordDelay = 20 * time.Millisecond

// OfflineNote is appended to every topical reply.
const OfflineNote = "\n\nNote: I'm currently operating in offline mode with limited capabilities."

// DefaultReply is returned when no category matches.
const DefaultReply = "I'm Dr. Echo, your health assistant. I'm currently operating in offline mode with limited capabilities. In this mode, I can only provide very general health information. For more specific guidance, please try again when my connection to the AI service is restored.\n\nFor medical concerns, please consult with a healthcare professional.\n\nTechnical note: The AI service connection is experiencing issues. This could be due to API key configuration, network connectivity, or service availability. Please check the console for more detailed error information."

// ErrorReply replaces the reply if generating it fails.
const ErrorReply = "I'm sorry, I encountered an error. Please try again."

// Category is a keyword set and the reply used when any keyword appears in
// the user's message.
type Category struct {
	Name     string
	Keywords []string
	Reply    string
}

// DefaultCategories are checked in order; the first match wins.
var DefaultCategories = []Category{
	{
		Name:     "greeting",
		Keywords: []string{"hello", "hi"},
		Reply:    "Hello! I'm Dr. Echo, your EchoMed AI health assistant. I'm currently operating in offline mode with limited capabilities, but I'll do my best to help you.",
	},
	{
		Name:     "headache",
		Keywords: []string{"headache"},
		Reply:    "Headaches can be caused by various factors including stress, dehydration, lack of sleep, or eye strain. For occasional headaches, rest, staying hydrated, and over-the-counter pain relievers may help. If your headaches are severe or persistent, please consult a healthcare professional." + OfflineNote,
	},
	{
		Name:     "fitness",
		Keywords: []string{"fitness", "exercise"},
		Reply:    "Regular physical activity is important for maintaining good health. Adults should aim for at least 150 minutes of moderate-intensity activity or 75 minutes of vigorous activity each week, along with muscle-strengthening activities twice weekly. Always start gradually and listen to your body." + OfflineNote,
	},
	{
		Name:     "nutrition",
		Keywords: []string{"diet", "nutrition"},
		Reply:    "A balanced diet typically includes plenty of fruits, vegetables, whole grains, lean proteins, and healthy fats. It's best to limit processed foods, added sugars, and excessive sodium. Staying hydrated is also important for overall health." + OfflineNote,
	},
	{
		Name:     "apple",
		Keywords: []string{"apple"},
		Reply:    "Apples are nutritious fruits that are high in fiber, vitamin C, and various antioxidants. They're associated with numerous health benefits, including improved heart health and potential reduced risk of certain cancers. The saying 'an apple a day keeps the doctor away' reflects their reputation as a healthy food choice." + OfflineNote,
	},
}

// =============================================================================
// RESPONDER
// =============================================================================

// Responder generates fallback replies. It is safe for concurrent use.
type Responder struct {
	categories []Category
	delay      time.Duration
	logger     *slog.Logger
}

// Option configures a Responder.
type Option func(*Responder)

// WithDelay sets the pause before each streamed word. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(r *Responder) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithCategories replaces the keyword categories.
func WithCategories(categories []Category) Option {
	return func(r *Responder) {
		r.categories = categories
	}
}

// WithLogger sets the logger used for streaming failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Responder with the default categories and word delay.
func New(opts ...Option) *Responder {
	r := &Responder{
		categories: DefaultCategories,
		delay:      DefaultWordDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Delay returns the configured per-word pause.
func (r *Responder) Delay() time.Duration {
	return r.delay
}

// Match returns the category matching the most recent user message, or
// false when the default reply applies.
func (r *Responder) Match(t model.Transcript) (Category, bool) {
	text := cases.Lower(language.Und).String(t.LastUserMessage())
	for _, c := range r.categories {
		for _, kw := range c.Keywords {
			if strings.Contains(text, kw) {
				return c, true
			}
		}
	}
	return Category{}, false
}

// Respond returns the canned reply for t.
func (r *Responder) Respond(t model.Transcript) string {
	if c, ok := r.Match(t); ok {
		return c.Reply
	}
	return DefaultReply
}

// RespondStreaming replays the reply for t one word at a time, reporting
// the cumulative text after each word, then completes with the full reply.
// It never returns an error: cancellation or a failure while generating
// becomes OnError followed by OnComplete(ErrorReply).
func (r *Responder) RespondStreaming(ctx context.Context, t model.Transcript, sink stream.Sink) {
	if sink == nil {
		sink = stream.Discard
	}

	reply, err := r.replay(ctx, t, sink)
	if err != nil {
		r.logger.Error("fallback stream failed", "error", err)
		sink.OnError(err)
		reply = ErrorReply
	}
	r.finish(sink, reply)
}

// replay streams the reply word by word and returns it without completing.
func (r *Responder) replay(ctx context.Context, t model.Transcript, sink stream.Sink) (reply string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("fallback panic: %v", p)
		}
	}()

	reply = r.Respond(t)
	words := strings.Split(reply, " ")

	var current strings.Builder
	for i, word := range words {
		if err := r.pause(ctx); err != nil {
			return "", err
		}
		if i > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
		sink.OnToken(current.String())
	}
	return reply, nil
}

// finish delivers the single OnComplete. A panic in the sink is logged and
// not retried.
func (r *Responder) finish(sink stream.Sink, reply string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("fallback completion handler panicked", "panic", p)
		}
	}()
	sink.OnComplete(reply)
}

func (r *Responder) pause(ctx context.Context) error {
	if r.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
