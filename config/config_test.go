package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvModel, "")
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api_key: file-id.file-secret
base_url: https://example.test/v4/
model: glm-4-plus
timeout: 45s
token_refresh: 5m
log:
  level: debug
  format: pretty
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, &Config{
		APIKey:       "file-id.file-secret",
		BaseURL:      "https://example.test/v4/",
		Model:        "glm-4-plus",
		Timeout:      45 * time.Second,
		TokenRefresh: 5 * time.Minute,
		Log:          LogConfig{Level: "debug", Format: "pretty"},
	}, cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIKey, "env-id.env-secret")
	t.Setenv(EnvModel, "glm-4-air")

	path := writeConfig(t, "api_key: file-id.file-secret\nmodel: glm-4-plus\nbase_url: https://file.test/\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-id.env-secret", cfg.APIKey)
	assert.Equal(t, "glm-4-air", cfg.Model)
	assert.Equal(t, "https://file.test/", cfg.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIKey, "a.b")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "a.b", cfg.APIKey)
}

func TestLoad_EmptyPath(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "api_key: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/bigmodel.yaml")
	assert.Equal(t, "/etc/bigmodel.yaml", DefaultPath())
}
