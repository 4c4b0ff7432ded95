// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.DefaultModel)
	assert.NotEmpty(t, cfg.LLM.BaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
default_model = "my-model"

[llm]
base_url = "http://llm.example:9999"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "my-model", cfg.DefaultModel)
	assert.Equal(t, "http://llm.example:9999", cfg.LLM.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset fields fall back to defaults.
	assert.Equal(t, 60, cfg.LLM.TimeoutSecs)
	assert.NotEmpty(t, cfg.API.BaseURL)
}

func TestLoadFromPathInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[log]
level = "loud"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CHATCORE_MODEL", "env-model")
	t.Setenv("CHATCORE_LLM_URL", "http://env-llm:1234")
	t.Setenv("CHATCORE_LOG_LEVEL", "warn")
	t.Setenv("CHATCORE_LOG_PRETTY", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "env-model", cfg.DefaultModel)
	assert.Equal(t, "http://env-llm:1234", cfg.LLM.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad llm url", func(c *Config) { c.LLM.BaseURL = "not a url" }},
		{"bad api url", func(c *Config) { c.API.BaseURL = "" }},
		{"negative timeout", func(c *Config) { c.LLM.TimeoutSecs = -1 }},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }},
		{"negative rate", func(c *Config) { c.LLM.RequestsPerSecond = -0.5 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateErrorNamesField(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.DefaultModel = "round-trip-model"
	cfg.Store.SnapshotPath = "/tmp/state.json"

	require.NoError(t, SaveToPath(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "round-trip-model", loaded.DefaultModel)
	assert.Equal(t, "/tmp/state.json", loaded.Store.SnapshotPath)
}

func TestSavePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, SaveToPath(Default(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, SaveToPath(Default(), path))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changed := make(chan *Config, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, path, func(cfg *Config) {
			select {
			case changed <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	cfg := Default()
	cfg.DefaultModel = "watched-model"
	require.NoError(t, SaveToPath(cfg, path))

	select {
	case got := <-changed:
		assert.Equal(t, "watched-model", got.DefaultModel)
	case <-ctx.Done():
		t.Fatal("watcher did not report the change in time")
	}

	cancel()
	<-done
}
