// Package config loads and persists the skywatch configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration.
type Config struct {
	// Backend holds the analysis backend connection settings.
	Backend BackendConfig `json:"backend"`

	// Alerts holds audible alert settings.
	Alerts AlertConfig `json:"alerts"`

	// UI preferences.
	UI UIConfig `json:"ui"`

	// ArchivePath overrides the session archive location. Empty means
	// ~/.skywatch/skywatch.db; "-" disables the archive entirely.
	ArchivePath string `json:"archive_path,omitempty"`
}

// BackendConfig holds analysis backend settings.
type BackendConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// AlertConfig holds audible alert settings.
type AlertConfig struct {
	Sound           bool `json:"sound"`
	CooldownSeconds int  `json:"cooldown_seconds"`
}

// UIConfig holds UI preferences.
type UIConfig struct {
	MinScore        int  `json:"min_score"`        // initial confidence threshold
	PollSeconds     int  `json:"poll_seconds"`     // realtime poll interval
	ShowNormalStart bool `json:"show_normal"`      // reveal confirmed-normal in feedback mode
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:            "http://localhost:8500",
			TimeoutSeconds: 30,
		},
		Alerts: AlertConfig{
			Sound:           true,
			CooldownSeconds: 30,
		},
		UI: UIConfig{
			MinScore:    0,
			PollSeconds: 5,
		},
	}
}

// configPath returns the config file location (~/.skywatch/config.json).
func configPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".skywatch", "config.json"), nil
}

// Load reads the config file, falling back to defaults if it doesn't exist
// or can't be parsed. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := configPath()
	if err == nil {
		if data, err := os.ReadFile(path); err == nil {
			// A corrupt file keeps the defaults rather than failing startup
			_ = json.Unmarshal(data, cfg)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("SKYWATCH_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("SKYWATCH_ARCHIVE"); v != "" {
		c.ArchivePath = v
	}
	if os.Getenv("SKYWATCH_NO_SOUND") != "" {
		c.Alerts.Sound = false
	}
}

// Save writes the config back to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
