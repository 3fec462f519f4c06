// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/echomed/drecho/internal/gemini"
	"github.com/echomed/drecho/internal/model"
)

// langChainBackend uses the langchaingo Google AI provider.
type langChainBackend struct {
	llm llms.Model
}

func newLangChainBackend(ctx context.Context, cfg Config) (*langChainBackend, error) {
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
		googleai.WithHarmThreshold(googleai.HarmBlockMediumAndAbove),
	)
	if err != nil {
		return nil, fmt.Errorf("create googleai client: %w", err)
	}
	return &langChainBackend{llm: llm}, nil
}

// messageContents maps the transcript onto langchaingo messages: user turns
// are human, everything else is spoken by the model.
func messageContents(t model.Transcript) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(t))
	for _, m := range t {
		role := llms.ChatMessageTypeAI
		if m.IsUser() {
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func callOptions(extra ...llms.CallOption) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(gemini.DefaultTemperature),
		llms.WithTopK(gemini.DefaultTopK),
		llms.WithTopP(gemini.DefaultTopP),
		llms.WithMaxTokens(gemini.DefaultMaxOutputTokens),
	}
	return append(opts, extra...)
}

func (b *langChainBackend) Generate(ctx context.Context, t model.Transcript) (string, error) {
	resp, err := b.llm.GenerateContent(ctx, messageContents(t), callOptions()...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("googleai returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func (b *langChainBackend) Stream(ctx context.Context, t model.Transcript, onDelta func(string) error) error {
	_, err := b.llm.GenerateContent(ctx, messageContents(t), callOptions(
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return onDelta(string(chunk))
		}),
	)...)
	return err
}
