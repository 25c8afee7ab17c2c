package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the service configuration model and file-based
// load/save behavior, including first-run config creation and 0600
// permissions. The card block itself is validated by NormalizeCard.

// HomeAssistantConfig describes how to reach the host API.
type HomeAssistantConfig struct {
	// URL is the base URL of the Home Assistant instance, e.g.
	// "http://homeassistant.local:8123". The "/api/" prefix is added by the client.
	URL string `yaml:"url" toml:"url" json:"url"`
	// Token is a long-lived access token. CALCOLUMN_HASS_TOKEN overrides it.
	Token string `yaml:"token" toml:"token" json:"-"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// CaptureConfig controls PNG previews rendered through headless Chromium.
type CaptureConfig struct {
	// Enabled turns on the scheduled preview refresh in serve mode.
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`
	// Cron schedules preview refreshes (e.g. "*/15 * * * *").
	Cron string `yaml:"cron" toml:"cron" json:"cron"`
	// Output is the PNG path served on /preview.png.
	Output string `yaml:"output" toml:"output" json:"output"`
	Width  int    `yaml:"width" toml:"width" json:"width"`
	Height int    `yaml:"height" toml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard and API.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to compute day windows and hour rows.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`

	HomeAssistant HomeAssistantConfig `yaml:"home_assistant" toml:"home_assistant" json:"home_assistant"`

	// StateRefresh is a cron-style schedule for polling host entity state.
	StateRefresh string `yaml:"state_refresh" toml:"state_refresh" json:"state_refresh"`

	// ICSCacheDir stores ETag/Last-Modified metadata for ICS-backed calendars.
	ICSCacheDir string `yaml:"ics_cache_dir" toml:"ics_cache_dir" json:"ics_cache_dir"`

	Capture CaptureConfig `yaml:"capture" toml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// Card is the declarative card configuration, validated by NormalizeCard.
	Card RawCard `yaml:"card" toml:"card" json:"card"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "Local",
		LogLevel:     "info",
		StateRefresh: "* * * * *",
		ICSCacheDir:  "./cache/ics-cache",
		Capture: CaptureConfig{
			Enabled: false,
			Cron:    "*/15 * * * *",
			Output:  "./cache/preview.png",
			Width:   1280,
			Height:  960,
		},
		HomeAssistant: HomeAssistantConfig{
			URL: "http://homeassistant.local:8123",
		},
		BasicAuth: nil,
		Card:      StubCard(),
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.StateRefresh == "" {
		c.StateRefresh = def.StateRefresh
	}
	if c.ICSCacheDir == "" {
		c.ICSCacheDir = def.ICSCacheDir
	}
	if c.Capture.Cron == "" {
		c.Capture.Cron = def.Capture.Cron
	}
	if c.Capture.Output == "" {
		c.Capture.Output = def.Capture.Output
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = def.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = def.Capture.Height
	}
	c.HomeAssistant.URL = strings.TrimRight(c.HomeAssistant.URL, "/")
	if c.Card.Entities == nil {
		c.Card.Entities = []any{}
	}
}

// Load loads configuration from the given path. Files ending in ".toml" are
// decoded as TOML, everything else as YAML.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - decode and normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML or TOML depending on the extension.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calcolumn-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Location resolves Timezone. Empty, "Local" and unknown names fall back to
// time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
