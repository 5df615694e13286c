// Package core drives the keyvet scan pipeline: configuration, collector
// fan-out, normalization, detection, enrichment, persistence, and the
// optional cloud sync. The transient plaintext channel is owned here — every
// handle is zeroed when a scan completes, on all exit paths.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keyvet-hq/keyvet/core/appdir"
	"github.com/keyvet-hq/keyvet/core/collectors/gitscan"
)

// ConfigFileName is the agent config file under the app-data directory.
const ConfigFileName = "config.json"

// DBFileName is the findings database under the app-data directory.
const DBFileName = "credentials.db"

// Config holds the agent configuration loaded from <app_data>/config.json.
type Config struct {
	ScanPaths           []string `json:"scan_paths"`
	IncludeBrowserScans bool     `json:"include_browser_scans"`
	IncludeGitScans     bool     `json:"include_git_scans"`
	IncludeEnvScans     bool     `json:"include_env_scans"`
	IncludeEntropyScan  bool     `json:"include_entropy_scan"`
	CloudURL            string   `json:"cloud_url,omitempty"`
	MaxCommits          int      `json:"max_commits,omitempty"`
	// PatternsFile optionally points at a YAML rules file with extra
	// detection patterns.
	PatternsFile string `json:"patterns_file,omitempty"`
	// AllowInsecureKeystore opts into storing the master key in the clear on
	// platforms without a data-protection primitive. Test environments only.
	AllowInsecureKeystore bool `json:"allow_insecure_keystore,omitempty"`

	OpenAI OpenAIConfig `json:"openai"`
}

// OpenAIConfig controls the optional LLM-backed explanation step.
type OpenAIConfig struct {
	// APIKeyEnv names the env var holding the API key (default:
	// OPENAI_API_KEY). Enrichment stays rule-based when the var is unset.
	APIKeyEnv string `json:"api_key_env,omitempty"`
	Model     string `json:"model,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`
	// RequestsPerMinute caps explanation calls (default 30).
	RequestsPerMinute int `json:"requests_per_minute,omitempty"`
}

// DefaultConfig returns the configuration used when no config file exists:
// the user-facing directories most likely to accumulate stray credentials,
// with all collectors enabled and the entropy matcher off.
func DefaultConfig() *Config {
	home := appdir.Home()
	return &Config{
		ScanPaths: []string{
			filepath.Join(home, "Desktop"),
			filepath.Join(home, "Documents"),
			filepath.Join(home, "Downloads"),
		},
		IncludeBrowserScans: true,
		IncludeGitScans:     true,
		IncludeEnvScans:     true,
		MaxCommits:          gitscan.DefaultMaxCommits,
	}
}

// LoadConfig reads <appData>/config.json. A missing file yields the defaults
// with no error; a malformed file is an error so a typo cannot silently
// disable collectors.
func LoadConfig(appData string) (*Config, error) {
	path := filepath.Join(appData, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.MaxCommits <= 0 {
		cfg.MaxCommits = gitscan.DefaultMaxCommits
	}
	return cfg, nil
}

// Save writes the configuration to <appData>/config.json.
func (c *Config) Save(appData string) error {
	path := filepath.Join(appData, ConfigFileName)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
