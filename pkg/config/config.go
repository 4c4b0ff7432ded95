// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for chatcore.
//
// Configuration comes from a TOML file with sensible defaults and
// environment variable overrides, in order of precedence:
//   - CHATCORE_* environment variables
//   - ~/.chatcore/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatcore configuration.
type Config struct {
	// DefaultModel is the model used when nothing else selects one.
	DefaultModel string `toml:"default_model"`

	// DefaultSystemPrompt seeds conversations without a template.
	DefaultSystemPrompt string `toml:"default_system_prompt"`

	// LLM configuration
	LLM LLMConfig `toml:"llm"`

	// API (session/template store) configuration
	API APIConfig `toml:"api"`

	// Store configuration
	Store StoreConfig `toml:"store"`

	// Log configuration
	Log LogConfig `toml:"log"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	// BaseURL is the URL of the LLM server.
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-invocation timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxRetries is the number of retries for transient failures.
	MaxRetries int `toml:"max_retries"`
	// RequestsPerSecond caps the invocation rate. 0 disables the limit.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// APIConfig contains remote session/template store settings.
type APIConfig struct {
	// BaseURL is the URL of the session and template API.
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
}

// StoreConfig contains shared-store settings.
type StoreConfig struct {
	// SnapshotPath persists store state across restarts.
	// Empty keeps the store in memory only.
	SnapshotPath string `toml:"snapshot_path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `toml:"level"`
	// Pretty switches from JSON to human-readable console output.
	Pretty bool `toml:"pretty"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		DefaultModel:        "qwen2.5-coder:14b",
		DefaultSystemPrompt: "You are a helpful assistant.",
		LLM: LLMConfig{
			BaseURL:           "http://127.0.0.1:11434",
			TimeoutSecs:       60,
			MaxRetries:        3,
			RequestsPerSecond: 2,
		},
		API: APIConfig{
			BaseURL:     "http://127.0.0.1:8080",
			TimeoutSecs: 15,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// fillDefaults replaces zero values with defaults after a partial file load.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = def.DefaultModel
	}
	if cfg.DefaultSystemPrompt == "" {
		cfg.DefaultSystemPrompt = def.DefaultSystemPrompt
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = def.LLM.MaxRetries
	}
	if cfg.LLM.RequestsPerSecond == 0 {
		cfg.LLM.RequestsPerSecond = def.LLM.RequestsPerSecond
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = def.API.BaseURL
	}
	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = def.API.TimeoutSecs
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the chatcore configuration directory (~/.chatcore).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".chatcore"), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load loads configuration from the default location, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - CHATCORE_MODEL: overrides default_model
//   - CHATCORE_LLM_URL: overrides llm.base_url
//   - CHATCORE_API_URL: overrides api.base_url
//   - CHATCORE_SNAPSHOT: overrides store.snapshot_path
//   - CHATCORE_LOG_LEVEL: overrides log.level
//   - CHATCORE_LOG_PRETTY: set to "1" or "true" for console output
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("CHATCORE_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if u := os.Getenv("CHATCORE_LLM_URL"); u != "" {
		c.LLM.BaseURL = u
	}
	if u := os.Getenv("CHATCORE_API_URL"); u != "" {
		c.API.BaseURL = u
	}
	if p := os.Getenv("CHATCORE_SNAPSHOT"); p != "" {
		c.Store.SnapshotPath = p
	}
	if level := os.Getenv("CHATCORE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if pretty := os.Getenv("CHATCORE_LOG_PRETTY"); pretty != "" {
		if v, err := strconv.ParseBool(pretty); err == nil {
			c.Log.Pretty = v
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}

// ValidateErrors aggregates all validation failures.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	for _, f := range []struct {
		field string
		value string
	}{
		{"llm.base_url", c.LLM.BaseURL},
		{"api.base_url", c.API.BaseURL},
	} {
		u, err := url.Parse(f.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   f.field,
				Message: fmt.Sprintf("not a valid URL: %q", f.value),
			})
		}
	}

	if c.LLM.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.timeout_secs",
			Message: "must not be negative",
		})
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.max_retries",
			Message: "must not be negative",
		})
	}
	if c.LLM.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.requests_per_second",
			Message: "must not be negative",
		})
	}
	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: "must not be negative",
		})
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown level %q", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default location with 0600
// permissions, creating the config directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration as TOML to a specific path.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return nil
}
