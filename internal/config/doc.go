// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for drecho.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, .env files, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - AssistantConfig: Gemini model, backend and retry settings
//   - StorageConfig: Conversation persistence driver and encryption
//   - ServerConfig: HTTP listener and rate limits
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DRECHO_*, GEMINI_API_KEY)
//   - .env in the working directory or ~/.drecho
//   - ~/.drecho/config.toml
//   - ~/.drecho/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Printf("config: %v (using defaults)", err)
//	}
//	client := assistant.New(cfg.AssistantOptions())
package config
