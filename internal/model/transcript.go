// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// =============================================================================
// SEED MESSAGES
// =============================================================================

const (
	// SystemMessageID is the fixed id of the leading system message.
	SystemMessageID = "system-1"

	// WelcomeMessageID is the fixed id of the greeting.
	WelcomeMessageID = "welcome"

	// SeedCount is the number of messages every transcript starts with.
	SeedCount = 2
)

// SystemPrompt defines how the assistant behaves.
const SystemPrompt = `
You are Dr. Echo, an advanced AI healthcare assistant developed by EchoMed. Your primary goal is to provide helpful, accurate, and compassionate healthcare guidance to users.

Guidelines:
1. Be empathetic and supportive while maintaining professional tone
2. Provide evidence-based information from reliable medical sources
3. Acknowledge uncertainty when appropriate
4. Encourage users to seek professional medical advice for serious concerns
5. Avoid making definitive diagnoses
6. Be concise yet comprehensive
7. Use plain language and explain medical terms
8. Consider physical, mental, and emotional aspects of health
9. Respect user privacy and maintain confidentiality

Remember: You are not a replacement for professional medical care, but a supportive resource for health information and guidance.
`

// Greeting is the first assistant message of every session.
const Greeting = "Hello! I'm Dr. Echo, your EchoMed AI health assistant. How can I help you with your health today?"

// SystemMessage returns the leading system message.
func SystemMessage() Message {
	return Message{
		ID:        SystemMessageID,
		Role:      RoleSystem,
		Content:   SystemPrompt,
		Timestamp: time.Now(),
	}
}

// WelcomeMessage returns the seed greeting.
func WelcomeMessage() Message {
	return Message{
		ID:        WelcomeMessageID,
		Role:      RoleAssistant,
		Content:   Greeting,
		Timestamp: time.Now(),
	}
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is an ordered, append-only list of messages.
type Transcript []Message

// NewTranscript returns a transcript holding only the seed messages.
func NewTranscript() Transcript {
	return Transcript{SystemMessage(), WelcomeMessage()}
}

// Append returns a transcript with msg added at the end. The receiver's
// backing array is never shared with the result.
func (t Transcript) Append(msg Message) Transcript {
	out := make(Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, msg)
}

// Clone returns an independent copy.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Len returns the number of messages.
func (t Transcript) Len() int {
	return len(t)
}

// EnsureSystem returns t with exactly one system message, at index 0. The
// first system message found moves to the front and later ones are dropped.
// Without one, the default prompt is prepended.
func (t Transcript) EnsureSystem() Transcript {
	systems := 0
	for _, m := range t {
		if m.IsSystem() {
			systems++
		}
	}
	if systems == 1 && t[0].IsSystem() {
		return t
	}

	out := make(Transcript, 0, len(t)+1)
	out = append(out, SystemMessage())
	found := false
	for _, m := range t {
		if !m.IsSystem() {
			out = append(out, m)
			continue
		}
		if !found {
			out[0] = m
			found = true
		}
	}
	return out
}

// LastUserMessage returns the content of the most recent user message, or
// an empty string if there is none.
func (t Transcript) LastUserMessage() string {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].IsUser() {
			return t[i].Content
		}
	}
	return ""
}

// Last returns the final message and true, or false for an empty transcript.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// Visible returns the messages shown to a reader (everything except system).
func (t Transcript) Visible() Transcript {
	out := make(Transcript, 0, len(t))
	for _, m := range t {
		if !m.IsSystem() {
			out = append(out, m)
		}
	}
	return out
}

// IsSeedOnly reports whether the transcript holds nothing beyond the seeds.
func (t Transcript) IsSeedOnly() bool {
	return len(t) <= SeedCount
}

// Title derives a short title from the first user message.
func (t Transcript) Title(maxRunes int) string {
	for _, m := range t {
		if m.IsUser() {
			title := strings.Join(strings.Fields(m.Content), " ")
			r := []rune(title)
			if maxRunes > 3 && len(r) > maxRunes {
				return string(r[:maxRunes-3]) + "..."
			}
			return title
		}
	}
	return "New conversation"
}
