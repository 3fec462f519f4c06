// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/echomed/drecho/internal/assistant"
	"github.com/echomed/drecho/internal/gemini"
	"github.com/echomed/drecho/internal/storage"
	"github.com/echomed/drecho/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete drecho configuration.
type Config struct {
	Assistant  AssistantConfig  `toml:"assistant" json:"assistant"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Facilities FacilitiesConfig `toml:"facilities" json:"facilities"`
	UI         UIConfig         `toml:"ui" json:"ui"`
	Log        LogConfig        `toml:"log" json:"log"`
}

// AssistantConfig configures the remote completion client.
type AssistantConfig struct {
	// APIKey is the Gemini credential. Usually supplied by environment.
	APIKey string `toml:"api_key" json:"api_key,omitempty"`

	// Model is the Gemini model name.
	Model string `toml:"model" json:"model"`

	// Backend selects the transport: "rest" or "langchaingo".
	Backend string `toml:"backend" json:"backend"`

	// BaseURL overrides the Gemini endpoint. Empty uses the public API.
	BaseURL string `toml:"base_url" json:"base_url,omitempty"`

	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries  int `toml:"max_retries" json:"max_retries"`

	// FallbackDelayMs is the pause before each streamed fallback word.
	FallbackDelayMs int `toml:"fallback_delay_ms" json:"fallback_delay_ms"`
}

// StorageConfig configures conversation persistence.
type StorageConfig struct {
	// Driver is one of "file", "sqlite" or "memory".
	Driver string `toml:"driver" json:"driver"`

	// Path is the data directory.
	Path string `toml:"path" json:"path"`

	// Encrypt seals values at rest with a key derived from Passphrase.
	Encrypt    bool   `toml:"encrypt" json:"encrypt"`
	Passphrase string `toml:"passphrase" json:"passphrase,omitempty"`
}

// ServerConfig configures `drecho serve`.
type ServerConfig struct {
	Addr       string  `toml:"addr" json:"addr"`
	RateLimit  float64 `toml:"rate_limit" json:"rate_limit"`
	Burst      int     `toml:"burst" json:"burst"`
	CORSOrigin string  `toml:"cors_origin" json:"cors_origin,omitempty"`
}

// FacilitiesConfig configures the facility directory.
type FacilitiesConfig struct {
	// File is an optional JSON catalog replacing the built-in sample data.
	File string `toml:"file" json:"file,omitempty"`

	// Watch reloads File when it changes on disk.
	Watch bool `toml:"watch" json:"watch"`
}

// UIConfig configures terminal output.
type UIConfig struct {
	Markdown bool `toml:"markdown" json:"markdown"`
	WordWrap int  `toml:"word_wrap" json:"word_wrap"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Model:           gemini.DefaultModel,
			Backend:         assistant.BackendREST,
			TimeoutSecs:     60,
			MaxRetries:      3,
			FallbackDelayMs: 20,
		},
		Storage: StorageConfig{
			Driver: storage.DriverFile,
			Path:   "~/.drecho/data",
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8787",
			RateLimit: 5,
			Burst:     10,
		},
		UI: UIConfig{
			Markdown: true,
			WordWrap: 80,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the drecho configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".drecho"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions tightens config files to 0600; they may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.drecho/config.toml, falling back to config.json and then to
// defaults. A .env file in the working directory or config directory is
// loaded first, so its variables take part in the environment overrides.
//
// When a config file exists but cannot be parsed, Load returns usable
// defaults together with the parse error.
func Load() (*Config, error) {
	LoadDotEnv()

	cfg := Default()
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil && fileExists(tomlPath) {
		if err := LoadTOML(cfg, tomlPath); err != nil {
			loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			cfg = Default()
		} else {
			return finish(cfg)
		}
	} else if jsonPath, err := ConfigPathJSON(); err == nil && fileExists(jsonPath) {
		if err := LoadJSON(cfg, jsonPath); err != nil {
			loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			cfg = Default()
		} else {
			return finish(cfg)
		}
	}

	cfg, err := finish(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file. The format follows
// the extension; anything but .json is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	LoadDotEnv()

	path, err := util.ExpandHome(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file on top of cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file on top of cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env from the working directory and from the config
// directory. Variables already set in the process environment win.
func LoadDotEnv() {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if fileExists(path) {
			_ = godotenv.Load(path)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to ~/.drecho/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# drecho configuration file\n")
	buf.WriteString("# Credentials are better kept in DRECHO_GEMINI_API_KEY or a .env file.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every validation failure.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = "  - " + ve.Error()
	}
	return fmt.Sprintf("%d config errors:\n%s", len(e), strings.Join(msgs, "\n"))
}

var (
	validBackends   = []string{assistant.BackendREST, assistant.BackendLangChain}
	validDrivers    = []string{storage.DriverFile, storage.DriverSQLite, storage.DriverMemory}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks value ranges and enumerations. It returns ValidateErrors
// when anything is wrong.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Assistant
	if c.Assistant.Backend != "" && !contains(validBackends, c.Assistant.Backend) {
		add("assistant.backend", "must be one of %s", strings.Join(validBackends, ", "))
	}
	if c.Assistant.TimeoutSecs < 0 || c.Assistant.TimeoutSecs > 600 {
		add("assistant.timeout_secs", "must be between 0 and 600")
	}
	if c.Assistant.MaxRetries < 0 || c.Assistant.MaxRetries > 10 {
		add("assistant.max_retries", "must be between 0 and 10")
	}
	if c.Assistant.FallbackDelayMs < 0 || c.Assistant.FallbackDelayMs > 1000 {
		add("assistant.fallback_delay_ms", "must be between 0 and 1000")
	}
	if c.Assistant.BaseURL != "" && !strings.HasPrefix(c.Assistant.BaseURL, "http://") &&
		!strings.HasPrefix(c.Assistant.BaseURL, "https://") {
		add("assistant.base_url", "must start with http:// or https://")
	}

	// Storage
	if c.Storage.Driver != "" && !contains(validDrivers, c.Storage.Driver) {
		add("storage.driver", "must be one of %s", strings.Join(validDrivers, ", "))
	}
	if c.Storage.Driver != storage.DriverMemory && c.Storage.Path == "" {
		add("storage.path", "is required for the %s driver", c.Storage.Driver)
	}

	// Server
	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			add("server.addr", "invalid address %q: %v", c.Server.Addr, err)
		}
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.Burst < 0 {
		add("server.burst", "must not be negative")
	}

	// UI
	if c.UI.WordWrap < 0 || c.UI.WordWrap > 500 {
		add("ui.word_wrap", "must be between 0 and 500")
	}

	// Log
	if c.Log.Level != "" && !contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		add("log.level", "must be one of %s", strings.Join(validLogLevels, ", "))
	}
	if c.Log.Format != "" && !contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		add("log.format", "must be one of %s", strings.Join(validLogFormats, ", "))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty fields with their defaults. Zero values that are
// meaningful (fallback delay, retries, encrypt) are left alone.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Assistant.Model == "" {
		c.Assistant.Model = d.Assistant.Model
	}
	if c.Assistant.Backend == "" {
		c.Assistant.Backend = d.Assistant.Backend
	}
	if c.Assistant.TimeoutSecs == 0 {
		c.Assistant.TimeoutSecs = d.Assistant.TimeoutSecs
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = d.Server.RateLimit
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = d.Server.Burst
	}

	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// APIKeyEnvVars lists the credential variables in lookup order.
var APIKeyEnvVars = []string{"DRECHO_GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GEMINI_API_KEY"}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - DRECHO_GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY, GEMINI_API_KEY: assistant.api_key (first non-empty)
//   - DRECHO_MODEL: assistant.model
//   - DRECHO_BACKEND: assistant.backend
//   - DRECHO_STORAGE: storage.driver
//   - DRECHO_DATA: storage.path
//   - DRECHO_PASSPHRASE: storage.passphrase, and enables storage.encrypt
//   - DRECHO_ADDR: server.addr
//   - DRECHO_LOG_LEVEL: log.level
func (c *Config) ApplyEnvOverrides() {
	for _, name := range APIKeyEnvVars {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			c.Assistant.APIKey = key
			break
		}
	}
	if model := os.Getenv("DRECHO_MODEL"); model != "" {
		c.Assistant.Model = model
	}
	if backend := os.Getenv("DRECHO_BACKEND"); backend != "" {
		c.Assistant.Backend = strings.ToLower(backend)
	}
	if driver := os.Getenv("DRECHO_STORAGE"); driver != "" {
		c.Storage.Driver = strings.ToLower(driver)
	}
	if data := os.Getenv("DRECHO_DATA"); data != "" {
		c.Storage.Path = data
	}
	if pass := os.Getenv("DRECHO_PASSPHRASE"); pass != "" {
		c.Storage.Passphrase = pass
		c.Storage.Encrypt = true
	}
	if addr := os.Getenv("DRECHO_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("DRECHO_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// AssistantOptions converts the [assistant] section for assistant.New.
func (c *Config) AssistantOptions() assistant.Config {
	return assistant.Config{
		APIKey:     c.Assistant.APIKey,
		Model:      c.Assistant.Model,
		Backend:    c.Assistant.Backend,
		BaseURL:    c.Assistant.BaseURL,
		Timeout:    time.Duration(c.Assistant.TimeoutSecs) * time.Second,
		MaxRetries: c.Assistant.MaxRetries,
	}
}

// FallbackDelay returns the per-word pause of the fallback responder.
func (c *Config) FallbackDelay() time.Duration {
	return time.Duration(c.Assistant.FallbackDelayMs) * time.Millisecond
}

// StorageOptions converts the [storage] section for storage.Open, expanding
// a leading ~ in the data path.
func (c *Config) StorageOptions() (storage.Options, error) {
	path, err := util.ExpandHome(c.Storage.Path)
	if err != nil {
		return storage.Options{}, err
	}
	return storage.Options{
		Driver:     c.Storage.Driver,
		Path:       path,
		Encrypt:    c.Storage.Encrypt,
		Passphrase: c.Storage.Passphrase,
	}, nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value using dot notation, e.g. "assistant.model".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value using dot notation. String values are converted to
// the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case or kebab-case to the Go field name.
// "cors_origin" becomes "CorsOrigin", which matches CORSOrigin case-insensitively.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation, sorted.
func Keys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("toml"), ",")[0]
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			collectKeys(f.Type, name, keys)
			continue
		}
		*keys = append(*keys, name)
	}
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Assistant.APIKey != "" {
		cp.Assistant.APIKey = gemini.NewClient(cp.Assistant.APIKey).KeyFingerprint()
	}
	if cp.Storage.Passphrase != "" {
		cp.Storage.Passphrase = "********"
	}
	return &cp
}

// String renders the redacted configuration as TOML.
func (c *Config) String() string {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(c.Redacted()); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}

// =============================================================================
// GLOBAL INSTANCE
// =============================================================================

var (
	globalConfig *Config
	globalOnce   sync.Once
	globalMu     sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// Load errors fall back to defaults.
func Global() *Config {
	globalOnce.Do(func() {
		cfg, _ := Load()
		if cfg == nil {
			cfg = Default()
		}
		globalMu.Lock()
		globalConfig = cfg
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalOnce.Do(func() {})
	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
}
