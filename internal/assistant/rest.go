// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"log/slog"

	"github.com/echomed/drecho/internal/gemini"
	"github.com/echomed/drecho/internal/model"
)

// restBackend talks to the Gemini REST API directly.
type restBackend struct {
	client *gemini.Client
}

func newRESTBackend(cfg Config, logger *slog.Logger) (*restBackend, error) {
	if err := gemini.ValidateAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}
	client := gemini.NewClient(cfg.APIKey).
		WithModel(cfg.Model).
		WithBaseURL(cfg.BaseURL).
		WithTimeout(cfg.Timeout).
		WithMaxRetries(cfg.MaxRetries).
		WithLogger(logger)
	return &restBackend{client: client}, nil
}

func (b *restBackend) Generate(ctx context.Context, t model.Transcript) (string, error) {
	resp, err := b.client.GenerateContent(ctx, gemini.NewRequest(t))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (b *restBackend) Stream(ctx context.Context, t model.Transcript, onDelta func(string) error) error {
	return b.client.StreamGenerateContent(ctx, gemini.NewRequest(t), func(chunk *gemini.GenerateResponse) error {
		return onDelta(chunk.Text())
	})
}
