// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echomed/drecho/internal/storage"
)

// isolate points HOME at a temp dir and clears every variable Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, name := range append([]string{
		"DRECHO_MODEL", "DRECHO_BACKEND", "DRECHO_STORAGE", "DRECHO_DATA",
		"DRECHO_PASSPHRASE", "DRECHO_ADDR", "DRECHO_LOG_LEVEL",
	}, APIKeyEnvVars...) {
		t.Setenv(name, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(home))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini-1.5-pro", cfg.Assistant.Model)
	assert.Equal(t, 20, cfg.Assistant.FallbackDelayMs)
	assert.Equal(t, storage.DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
	assert.True(t, cfg.UI.Markdown)
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Assistant, cfg.Assistant)
}

func TestLoad_TOMLFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".drecho")
	require.NoError(t, os.MkdirAll(dir, 0700))
	content := `
[assistant]
model = "gemini-1.5-flash"
fallback_delay_ms = 0

[storage]
driver = "sqlite"
path = "/tmp/drecho-test"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", cfg.Assistant.Model)
	assert.Equal(t, 0, cfg.Assistant.FallbackDelayMs, "explicit zero delay must survive defaults")
	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 60, cfg.Assistant.TimeoutSecs, "unset fields keep defaults")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, "config.toml"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestLoad_BrokenTOMLFallsBackToDefaults(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".drecho")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[assistant\nmodel="), 0600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default().Assistant.Model, cfg.Assistant.Model)
}

func TestLoadFromPath_JSON(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "drecho.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"addr":"0.0.0.0:9000"}}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Server.Burst)
}

func TestLoadFromPath_InvalidValues(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[assistant]\nbackend = \"carrier-pigeon\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "assistant.backend", verrs[0].Field)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "  key-from-gemini-var  ")
	t.Setenv("DRECHO_MODEL", "gemini-2.0-flash")
	t.Setenv("DRECHO_BACKEND", "LangChainGo")
	t.Setenv("DRECHO_PASSPHRASE", "hunter2")
	t.Setenv("DRECHO_LOG_LEVEL", "DEBUG")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "key-from-gemini-var", cfg.Assistant.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.Assistant.Model)
	assert.Equal(t, "langchaingo", cfg.Assistant.Backend)
	assert.True(t, cfg.Storage.Encrypt)
	assert.Equal(t, "hunter2", cfg.Storage.Passphrase)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnvOverrides_KeyPrecedence(t *testing.T) {
	isolate(t)
	t.Setenv("DRECHO_GEMINI_API_KEY", "first")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "second")
	t.Setenv("GEMINI_API_KEY", "third")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "first", cfg.Assistant.APIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".env"), []byte("DRECHO_MODEL=from-dotenv\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("DRECHO_MODEL") })
	os.Unsetenv("DRECHO_MODEL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Assistant.Model)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Assistant.MaxRetries = 99
	cfg.Storage.Driver = "floppy"
	cfg.Server.Addr = "no-port"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, ve := range verrs {
		fields[i] = ve.Field
	}
	assert.ElementsMatch(t, []string{"assistant.max_retries", "storage.driver", "server.addr", "log.format"}, fields)
	assert.Contains(t, err.Error(), "4 config errors")
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Assistant.Model = "gemini-1.5-flash"
	cfg.Facilities.File = "/srv/facilities.json"
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# drecho configuration file"))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", loaded.Assistant.Model)
	assert.Equal(t, "/srv/facilities.json", loaded.Facilities.File)
}

func TestGetSet_DotNotation(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("assistant.model", "gemini-pro"))
	require.NoError(t, cfg.Set("server.rate_limit", "2.5"))
	require.NoError(t, cfg.Set("server.cors_origin", "https://example.org"))
	require.NoError(t, cfg.Set("ui.markdown", "false"))
	require.NoError(t, cfg.Set("assistant.max_retries", 5))

	v, err := cfg.Get("assistant.model")
	require.NoError(t, err)
	assert.Equal(t, "gemini-pro", v)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
	assert.Equal(t, "https://example.org", cfg.Server.CORSOrigin)
	assert.False(t, cfg.UI.Markdown)
	assert.Equal(t, 5, cfg.Assistant.MaxRetries)

	_, err = cfg.Get("assistant.nope")
	assert.ErrorContains(t, err, "unknown field")
	assert.Error(t, cfg.Set("assistant.max_retries", "many"))
	assert.Error(t, cfg.Set("", "x"))
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "assistant.api_key")
	assert.Contains(t, keys, "storage.driver")
	assert.Contains(t, keys, "log.format")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Assistant.APIKey = "abc"
	cfg.Storage.Path = "/var/lib/drecho"

	ac := cfg.AssistantOptions()
	assert.Equal(t, "abc", ac.APIKey)
	assert.Equal(t, 60*time.Second, ac.Timeout)
	assert.Equal(t, 20*time.Millisecond, cfg.FallbackDelay())

	so, err := cfg.StorageOptions()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/drecho", so.Path)
	assert.Equal(t, storage.DriverFile, so.Driver)
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Assistant.APIKey = "AIzaSySECRETSECRETSECRETSECRET"
	cfg.Storage.Passphrase = "hunter2"

	out := cfg.String()
	assert.NotContains(t, out, "SECRETSECRET")
	assert.NotContains(t, out, "hunter2")
	assert.Equal(t, "AIzaSySECRETSECRETSECRETSECRET", cfg.Assistant.APIKey, "original untouched")
}

func TestGlobal_ConcurrentAccess(t *testing.T) {
	isolate(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
