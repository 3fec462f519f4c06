// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fallback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echomed/drecho/internal/model"
	"github.com/echomed/drecho/internal/stream"
)

func transcriptWith(userText ...string) model.Transcript {
	t := model.NewTranscript()
	for _, text := range userText {
		t = t.Append(model.NewUserMessage(text))
	}
	return t
}

func replyFor(name string) string {
	for _, c := range DefaultCategories {
		if c.Name == name {
			return c.Reply
		}
	}
	return ""
}

func TestRespond_Categories(t *testing.T) {
	r := New(WithDelay(0))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"greeting", "hello", replyFor("greeting")},
		{"greeting uppercase", "HELLO THERE", replyFor("greeting")},
		{"headache mixed case", "I have a bad Headache today", replyFor("headache")},
		{"exercise", "how much exercise do I need", replyFor("fitness")},
		{"nutrition", "tips on nutrition", replyFor("nutrition")},
		{"diet", "is my diet ok", replyFor("nutrition")},
		{"apple", "are apples good", replyFor("apple")},
		{"default", "my knee is sore", DefaultReply},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Respond(transcriptWith(tc.input))
			if got != tc.want {
				t.Errorf("Respond(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestRespond_OrderMatters(t *testing.T) {
	r := New(WithDelay(0))
	// "this" contains "hi", so the greeting category wins over headache.
	got := r.Respond(transcriptWith("this headache"))
	assert.Equal(t, replyFor("greeting"), got)
}

func TestRespond_UsesLatestUserMessage(t *testing.T) {
	r := New(WithDelay(0))
	tr := transcriptWith("my headache", "what about nutrition").
		Append(model.NewAssistantMessage("hello"))
	assert.Equal(t, replyFor("nutrition"), r.Respond(tr))
}

func TestRespond_NoUserMessage(t *testing.T) {
	r := New(WithDelay(0))
	assert.Equal(t, DefaultReply, r.Respond(model.NewTranscript()))
}

func TestRespondStreaming_MatchesRespond(t *testing.T) {
	r := New(WithDelay(0))
	inputs := []string{"hello", "headache", "exercise", "diet", "apple", "anything else", ""}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			tr := transcriptWith(in)
			rec := &stream.Recorder{}
			r.RespondStreaming(context.Background(), tr, rec)

			want := r.Respond(tr)
			require.Equal(t, 1, rec.Completed())
			assert.Equal(t, want, rec.Final())

			tokens := rec.Tokens()
			require.NotEmpty(t, tokens)
			assert.Equal(t, want, tokens[len(tokens)-1])
			assert.Len(t, tokens, len(strings.Split(want, " ")))
		})
	}
}

func TestRespondStreaming_TokensAreCumulative(t *testing.T) {
	r := New(WithDelay(0))
	rec := &stream.Recorder{}
	r.RespondStreaming(context.Background(), transcriptWith("hello"), rec)

	tokens := rec.Tokens()
	for i := 1; i < len(tokens); i++ {
		if !strings.HasPrefix(tokens[i], tokens[i-1]) {
			t.Fatalf("token %d = %q does not extend %q", i, tokens[i], tokens[i-1])
		}
	}
	assert.Equal(t, "Hello!", tokens[0])
	assert.Empty(t, rec.Errors())
}

func TestRespondStreaming_Delay(t *testing.T) {
	r := New(WithDelay(5 * time.Millisecond))
	rec := &stream.Recorder{}

	start := time.Now()
	r.RespondStreaming(context.Background(), transcriptWith("hello"), rec)
	elapsed := time.Since(start)

	words := len(strings.Split(replyFor("greeting"), " "))
	if min := time.Duration(words) * 5 * time.Millisecond; elapsed < min {
		t.Errorf("elapsed %v, want at least %v", elapsed, min)
	}
}

func TestRespondStreaming_CancelledContext(t *testing.T) {
	r := New(WithDelay(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &stream.Recorder{}
	r.RespondStreaming(ctx, transcriptWith("hello"), rec)

	require.Len(t, rec.Errors(), 1)
	assert.True(t, errors.Is(rec.Errors()[0], context.Canceled))
	assert.Equal(t, ErrorReply, rec.Final())
	assert.Equal(t, []string{stream.EventError, stream.EventComplete}, rec.Events())
}

type panicSink struct{ stream.Recorder }

func (p *panicSink) OnToken(string) { panic("render failed") }

func TestRespondStreaming_RecoversPanic(t *testing.T) {
	r := New(WithDelay(0))
	sink := &panicSink{}
	r.RespondStreaming(context.Background(), transcriptWith("hello"), sink)

	require.Len(t, sink.Errors(), 1)
	assert.Contains(t, sink.Errors()[0].Error(), "render failed")
	assert.Equal(t, ErrorReply, sink.Final())
}

// completePanicSink counts completions and panics on each one.
type completePanicSink struct {
	stream.Recorder
	completes int
}

func (p *completePanicSink) OnComplete(string) {
	p.completes++
	panic("completion handler failed")
}

func TestRespondStreaming_CompletesOnceWhenCompletionPanics(t *testing.T) {
	r := New(WithDelay(0))
	sink := &completePanicSink{}

	assert.NotPanics(t, func() {
		r.RespondStreaming(context.Background(), transcriptWith("hello"), sink)
	})
	assert.Equal(t, 1, sink.completes)
	assert.Empty(t, sink.Errors())
	assert.NotEmpty(t, sink.Tokens())
}

func TestWithCategories(t *testing.T) {
	r := New(WithDelay(0), WithCategories([]Category{{Name: "sleep", Keywords: []string{"insomnia"}, Reply: "Try a routine."}}))
	assert.Equal(t, "Try a routine.", r.Respond(transcriptWith("Insomnia again")))
	assert.Equal(t, DefaultReply, r.Respond(transcriptWith("hello")))
}
