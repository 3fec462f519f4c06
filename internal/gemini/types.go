// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"strings"

	"github.com/echomed/drecho/internal/model"
)

// =============================================================================
// ROLES AND GENERATION SETTINGS
// =============================================================================

// Roles understood by the API.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Harm categories.
const (
	HarmCategoryHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// BlockMediumAndAbove blocks content with medium or high probability of harm.
const BlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"

// Generation defaults sent with every request.
const (
	DefaultTemperature     = 0.7
	DefaultTopK            = 40
	DefaultTopP            = 0.95
	DefaultMaxOutputTokens = 1024
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Part is a piece of message content. Only text parts are used.
type Part struct {
	Text string `json:"text"`
}

// Content is one turn of the conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig holds sampling parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// SafetySetting sets the block threshold for one harm category.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerateRequest is the body of generateContent and streamGenerateContent.
type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings   []SafetySetting   `json:"safetySettings,omitempty"`
}

// DefaultGenerationConfig returns the sampling parameters used by the assistant.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		Temperature:     DefaultTemperature,
		TopK:            DefaultTopK,
		TopP:            DefaultTopP,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// DefaultSafetySettings blocks medium-and-above content in every category.
func DefaultSafetySettings() []SafetySetting {
	categories := []string{
		HarmCategoryHarassment,
		HarmCategoryHateSpeech,
		HarmCategorySexuallyExplicit,
		HarmCategoryDangerousContent,
	}
	settings := make([]SafetySetting, len(categories))
	for i, c := range categories {
		settings[i] = SafetySetting{Category: c, Threshold: BlockMediumAndAbove}
	}
	return settings
}

// RoleFor maps a transcript role onto the API vocabulary: user stays user,
// everything else is spoken by the model.
func RoleFor(r model.Role) string {
	if r == model.RoleUser {
		return RoleUser
	}
	return RoleModel
}

// Contents converts a transcript into API contents, one per message.
func Contents(t model.Transcript) []Content {
	contents := make([]Content, 0, len(t))
	for _, m := range t {
		contents = append(contents, Content{
			Role:  RoleFor(m.Role),
			Parts: []Part{{Text: m.Content}},
		})
	}
	return contents
}

// NewRequest builds a request for t with the default generation and safety
// settings.
func NewRequest(t model.Transcript) *GenerateRequest {
	return &GenerateRequest{
		Contents:         Contents(t),
		GenerationConfig: DefaultGenerationConfig(),
		SafetySettings:   DefaultSafetySettings(),
	}
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// SafetyRating is the model's harm assessment for one category.
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked,omitempty"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content       Content        `json:"content"`
	FinishReason  string         `json:"finishReason,omitempty"`
	SafetyRatings []SafetyRating `json:"safetyRatings,omitempty"`
}

// PromptFeedback reports whether the prompt itself was blocked.
type PromptFeedback struct {
	BlockReason   string         `json:"blockReason,omitempty"`
	SafetyRatings []SafetyRating `json:"safetyRatings,omitempty"`
}

// UsageMetadata carries token counts.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GenerateResponse is a full response or a single streamed chunk.
type GenerateResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
}

// Text returns the concatenated text parts of the first candidate.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 1 {
		return parts[0].Text
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// FinishReason returns the first candidate's finish reason.
func (r *GenerateResponse) FinishReason() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0].FinishReason
}

// BlockReason returns why the prompt or answer was blocked, or "".
func (r *GenerateResponse) BlockReason() string {
	if r == nil {
		return ""
	}
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return r.PromptFeedback.BlockReason
	}
	if reason := r.FinishReason(); reason == "SAFETY" {
		return reason
	}
	return ""
}
