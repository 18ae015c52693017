// Package config loads CB Clipper settings from ~/.cbclipper/config.yaml,
// an optional .env file and CBCLIPPER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/cbclipper/internal/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvListen       = "CBCLIPPER_LISTEN"
	EnvDB           = "CBCLIPPER_DB"
	EnvTimezone     = "CBCLIPPER_TZ"
	EnvAlertCommand = "CBCLIPPER_ALERT_COMMAND"
)

// Config holds daemon and client settings.
type Config struct {
	// Listen is the API server address.
	Listen string `yaml:"listen"`
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// Timezone names the zone calendar days are keyed in. Empty means local.
	Timezone string `yaml:"timezone"`

	Alarm    AlarmConfig    `yaml:"alarm"`
	Poll     PollConfig     `yaml:"poll"`
	Alert    AlertConfig    `yaml:"alert"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// AlarmConfig tunes the completion scheduler.
type AlarmConfig struct {
	// SweepInterval is the backstop check for overdue alarms.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// PollConfig tunes how often adapters re-read the timer.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// AlertConfig selects the completion notifier.
type AlertConfig struct {
	Enabled bool `yaml:"enabled"`
	// Command is an allow-listed notifier. Empty selects the platform default.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// DefaultsConfig holds the durations used when a start names none.
type DefaultsConfig struct {
	FocusMinutes int `yaml:"focus_minutes"`
	BreakMinutes int `yaml:"break_minutes"`
}

// Dir returns ~/.cbclipper.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cbclipper"
	}
	return filepath.Join(home, ".cbclipper")
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1:7466",
		DBPath: filepath.Join(Dir(), "cbclipper.db"),
		Alarm:  AlarmConfig{SweepInterval: 15 * time.Second},
		Poll:   PollConfig{Interval: time.Second},
		Alert:  AlertConfig{Enabled: true},
		Defaults: DefaultsConfig{
			FocusMinutes: models.DefaultDurationMinutes,
			BreakMinutes: 5,
		},
	}
}

// Load reads configuration from a YAML file, then applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromHome loads .env from the working directory, if present, and then
// ~/.cbclipper/config.yaml.
func LoadFromHome() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return Load(filepath.Join(Dir(), "config.yaml"))
}

// Save writes configuration to a YAML file, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvAlertCommand); v != "" {
		c.Alert.Command = v
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must be set")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must be set")
	}
	if c.Alarm.SweepInterval <= 0 {
		return fmt.Errorf("alarm.sweep_interval must be positive")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Defaults.FocusMinutes < 1 || c.Defaults.BreakMinutes < 1 {
		return fmt.Errorf("default durations must be at least 1 minute")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the zone calendar days are keyed in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultMinutes returns the configured length for a mode.
func (c *Config) DefaultMinutes(mode models.Mode) int {
	if mode == models.ModeBreak {
		return c.Defaults.BreakMinutes
	}
	return c.Defaults.FocusMinutes
}
