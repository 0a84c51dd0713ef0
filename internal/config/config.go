package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Supported LLM providers
const (
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Agent    AgentConfig    `toml:"agent"`
	Monitor  MonitorConfig  `toml:"monitor"`
	API      APIConfig      `toml:"api"`
	Analysis AnalysisConfig `toml:"analysis"`
	Storage  StorageConfig  `toml:"storage"`
}

// AgentConfig identifies the agent the records are ingested for.
type AgentConfig struct {
	ID     string `toml:"id"`      // the agent's own record-store identity
	UserID string `toml:"user_id"` // the agent's upstream account id
	Handle string `toml:"handle"`
}

type MonitorConfig struct {
	Accounts            string `toml:"accounts"` // comma-separated handles
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	PageSize            int    `toml:"page_size"`
	MaxThreadDepth      int    `toml:"max_thread_depth"`
	RecencyWindowMin    int    `toml:"recency_window_minutes"`
	InactivityMin       int    `toml:"inactivity_threshold_minutes"`
}

type APIConfig struct {
	BaseURL     string `toml:"base_url"`
	BearerToken string `toml:"bearer_token"`
}

type AnalysisConfig struct {
	LLMProvider string  `toml:"llm_provider"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type StorageConfig struct {
	DBPath string `toml:"db_path"` // defaults to <cache dir>/sourcewatch.db
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Monitor: MonitorConfig{
			PollIntervalSeconds: 60,
			PageSize:            20,
			MaxThreadDepth:      10,
			RecencyWindowMin:    120,
			InactivityMin:       45,
		},
		Analysis: AnalysisConfig{
			LLMProvider: ProviderAnthropic,
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.7,
			MaxTokens:   500,
		},
	}
}

// Handles returns the monitored account handles parsed from the
// comma-separated accounts setting: entries are trimmed, a leading "@" is
// stripped, blanks are discarded, and duplicates are dropped while
// preserving first-seen order.
func (c *Config) Handles() []string {
	return ParseHandles(c.Monitor.Accounts)
}

// ParseHandles parses a comma-separated handle list. See Config.Handles.
func ParseHandles(accounts string) []string {
	var handles []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(accounts, ",") {
		h := strings.TrimPrefix(strings.TrimSpace(part), "@")
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		handles = append(handles, h)
	}
	return handles
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "sourcewatch"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "sourcewatch"), nil
}

// DBPath returns the configured database path, or the default location
// under the cache directory when unset.
func (c *Config) DBPath() (string, error) {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sourcewatch.db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
