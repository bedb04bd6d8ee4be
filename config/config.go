// Package config loads client settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvAPIKey  = "ZHIPU_API_KEY"
	EnvBaseURL = "ZHIPU_BASE_URL"
	EnvModel   = "ZHIPU_MODEL"
	EnvConfig  = "BIGMODEL_CONFIG"
)

// Config holds client settings. Zero values mean "use the default".
type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Timeout bounds a whole HTTP exchange, streaming included.
	Timeout time.Duration `yaml:"timeout"`

	// TokenRefresh, when non-zero, reissues the credential this long
	// before it expires.
	TokenRefresh time.Duration `yaml:"token_refresh"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or pretty
}

// DefaultPath returns $XDG_CONFIG_HOME/bigmodel/config.yaml, or the
// equivalent under the user config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bigmodel", "config.yaml")
}

// Load reads the file at path, then applies environment overrides.
// A missing file is not an error; an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadDefault is Load(DefaultPath()).
func LoadDefault() (*Config, error) {
	return Load(DefaultPath())
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
}
