// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New("info", "json", &buf), "assistant")

	logger.Debug("hidden")
	logger.Warn("falling back", "reason", "missing key")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "assistant", entry["component"])
	assert.Equal(t, "missing key", entry["reason"])
}

func TestNew_TextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("error", "text", &buf)
	logger.Info("quiet")
	assert.Empty(t, buf.String())
	logger.Error("loud")
	assert.Contains(t, buf.String(), "msg=loud")
}

func TestComponent_NilLogger(t *testing.T) {
	logger := Component(nil, "store")
	require.NotNil(t, logger)
	logger.Error("dropped")
}
