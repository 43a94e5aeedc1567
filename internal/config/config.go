package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// PlannerConfig controls the study-plan generator.
type PlannerConfig struct {
	// Model is the generative model name, e.g. "gemini-2.0-flash".
	Model string `yaml:"model" json:"model"`
	// APIKeyEnv names the environment variable holding the API key. The key
	// itself never lives in the config file.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	// TimeoutSeconds bounds a single generation call.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// DefaultIntensity is used when a request omits it (1 light .. 3 heavy).
	DefaultIntensity int `yaml:"default_intensity" json:"default_intensity"`
}

// IngestConfig points at the PDF-ingestion service.
type IngestConfig struct {
	// URL of the upload endpoint. Empty disables PDF upload.
	URL            string `yaml:"url" json:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// SyncConfig describes the external calendar sync target.
type SyncConfig struct {
	// Endpoint receives pushed events. Empty disables sync.
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// Cron is a cron-style schedule (e.g. "*/30 * * * *") for pushing every
	// live workspace. Empty means push on demand only.
	Cron           string `yaml:"cron" json:"cron"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to date the active week.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is treated as the first day of the week
	// in calendar views. Supported values:
	//   - "sunday" (default)
	//   - "monday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// PixelsPerHour is the height of one hour row in the grid.
	PixelsPerHour float64 `yaml:"pixels_per_hour" json:"pixels_per_hour"`

	// SnapMinutes is the drag/resize snap granularity.
	SnapMinutes int `yaml:"snap_minutes" json:"snap_minutes"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SessionTTLMinutes expires idle workspaces.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" json:"session_ttl_minutes"`

	Planner PlannerConfig `yaml:"planner" json:"planner"`
	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Sync    SyncConfig    `yaml:"sync" json:"sync"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:3001",
		Timezone:          "UTC",
		WeekStart:         "sunday",
		PixelsPerHour:     80,
		SnapMinutes:       15,
		LogLevel:          "info",
		SessionTTLMinutes: 240,
		Planner: PlannerConfig{
			Model:            "gemini-2.0-flash",
			APIKeyEnv:        "GEMINI_API_KEY",
			TimeoutSeconds:   60,
			DefaultIntensity: 2,
		},
		Ingest: IngestConfig{
			TimeoutSeconds: 30,
		},
		Sync: SyncConfig{
			CalendarID:     "primary",
			TimeoutSeconds: 15,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to sunday to avoid surprising layouts.
		c.WeekStart = d.WeekStart
	}
	if c.PixelsPerHour <= 0 {
		c.PixelsPerHour = d.PixelsPerHour
	}
	if c.SnapMinutes <= 0 || c.SnapMinutes > 60 {
		c.SnapMinutes = d.SnapMinutes
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = d.SessionTTLMinutes
	}

	if c.Planner.Model == "" {
		c.Planner.Model = d.Planner.Model
	}
	if c.Planner.APIKeyEnv == "" {
		c.Planner.APIKeyEnv = d.Planner.APIKeyEnv
	}
	if c.Planner.TimeoutSeconds <= 0 {
		c.Planner.TimeoutSeconds = d.Planner.TimeoutSeconds
	}
	if c.Planner.DefaultIntensity < 1 || c.Planner.DefaultIntensity > 3 {
		c.Planner.DefaultIntensity = d.Planner.DefaultIntensity
	}
	if c.Ingest.TimeoutSeconds <= 0 {
		c.Ingest.TimeoutSeconds = d.Ingest.TimeoutSeconds
	}
	if c.Sync.CalendarID == "" {
		c.Sync.CalendarID = d.Sync.CalendarID
	}
	if c.Sync.TimeoutSeconds <= 0 {
		c.Sync.TimeoutSeconds = d.Sync.TimeoutSeconds
	}
}

// FirstWeekday returns WeekStart as a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

// SessionTTL returns SessionTTLMinutes as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// PlannerAPIKey reads the generator API key from the environment.
func (c *Config) PlannerAPIKey() string {
	return os.Getenv(c.Planner.APIKeyEnv)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
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
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
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

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".studycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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
