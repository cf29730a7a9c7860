package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Preference backends
const (
	BackendSQLite = "sqlite" // preferences table in the autohttps database
	BackendFile   = "file"   // YAML file watched for edits
)

// ChromeConfig selects the browser serve attaches to.
type ChromeConfig struct {
	DebuggerURL string `json:"debugger_url,omitempty"` // ws:// or http:// DevTools endpoint
	Launch      bool   `json:"launch"`                 // start a browser when DebuggerURL is empty
	Headless    bool   `json:"headless"`
	Bin         string `json:"bin,omitempty"`
}

// Config represents the flat autohttps configuration
type Config struct {
	PreferenceBackend string       `json:"preference_backend"`         // "sqlite" or "file"
	PreferencesFile   string       `json:"preferences_file,omitempty"` // for the file backend
	DBPath            string       `json:"db_path,omitempty"`
	Chrome            ChromeConfig `json:"chrome"`
	MetricsAddr       string       `json:"metrics_addr,omitempty"` // e.g. 127.0.0.1:9464
	Development       bool         `json:"development"`
	Diagnostics       bool         `json:"diagnostics"` // Debug logging before preferences load
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		PreferenceBackend: BackendSQLite,
		Chrome:            ChromeConfig{Launch: true},
	}
}

// Validate checks fields that have a closed set of values.
func (c *Config) Validate() error {
	switch c.PreferenceBackend {
	case BackendSQLite:
	case BackendFile:
		if c.PreferencesFile == "" {
			return fmt.Errorf("preferences_file is required for the %q backend", BackendFile)
		}
	default:
		return fmt.Errorf("unknown preference_backend %q (want %q or %q)", c.PreferenceBackend, BackendSQLite, BackendFile)
	}
	return nil
}

// Dir returns the .autohttps directory under base.
func Dir(base string) string {
	return filepath.Join(base, ".autohttps")
}

// DefaultDir returns ~/.autohttps.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return Dir(home), nil
}

// LoadConfig reads .autohttps/config.json from the specified directory.
// A missing file yields Default().
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(Dir(dir), "config.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	appDir := Dir(dir)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return fmt.Errorf("failed to create .autohttps dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(appDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
