// Package config loads the stitch configuration file. Configuration is
// YAML with explicit defaults; every knob has a safe zero-config value
// so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultMaxActivityPause       = 5 * time.Minute
	DefaultUninterruptedThreshold = 30 * time.Second
	DefaultLevenshteinThreshold   = 2
	DefaultWindowDuration         = 15 * time.Minute
	DefaultDatabasePath           = "stitch.db"

	// APIKeyEnv is the environment variable holding the oracle API key.
	// Keys never live in the config file.
	APIKeyEnv = "STITCH_GEMINI_API_KEY"
)

// Duration wraps time.Duration with YAML support for values like "5m"
// or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds every tunable of the reconciliation pipeline.
type Config struct {
	// MaxActivityPause is the global pause tolerance: the largest gap
	// between an activity's anchor and a candidate's first event at
	// which stitching is still considered.
	MaxActivityPause Duration `yaml:"max_activity_pause_time"`

	// UninterruptedThreshold is the smaller gap below which a stitched
	// continuation is seamless (no re-open event recorded).
	UninterruptedThreshold Duration `yaml:"time_for_uninterrupted_ongoing_stitch"`

	// LevenshteinThreshold is the maximum spaceless edit distance for
	// the programmatic name match.
	LevenshteinThreshold int `yaml:"levenshtein_threshold"`

	// WindowDuration is the length of one aggregation window.
	WindowDuration Duration `yaml:"window_duration"`

	// DatabasePath is the SQLite file for the activity history.
	DatabasePath string `yaml:"database_path"`

	// Oracle selects the Gemini model for generation and merge calls.
	Oracle OracleConfig `yaml:"oracle"`
}

// OracleConfig configures the LLM oracle client.
type OracleConfig struct {
	Model string `yaml:"model"`
}

// Default returns the zero-config configuration.
func Default() Config {
	return Config{
		MaxActivityPause:       Duration(DefaultMaxActivityPause),
		UninterruptedThreshold: Duration(DefaultUninterruptedThreshold),
		LevenshteinThreshold:   DefaultLevenshteinThreshold,
		WindowDuration:         Duration(DefaultWindowDuration),
		DatabasePath:           DefaultDatabasePath,
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
// A missing file returns Default() without error; a malformed file is
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.MaxActivityPause <= 0 {
		return fmt.Errorf("max_activity_pause_time must be positive, got %s", c.MaxActivityPause.Std())
	}
	if c.UninterruptedThreshold <= 0 {
		return fmt.Errorf("time_for_uninterrupted_ongoing_stitch must be positive, got %s", c.UninterruptedThreshold.Std())
	}
	if c.UninterruptedThreshold.Std() > c.MaxActivityPause.Std() {
		return fmt.Errorf("time_for_uninterrupted_ongoing_stitch (%s) exceeds max_activity_pause_time (%s)",
			c.UninterruptedThreshold.Std(), c.MaxActivityPause.Std())
	}
	if c.LevenshteinThreshold < 0 {
		return fmt.Errorf("levenshtein_threshold must be non-negative, got %d", c.LevenshteinThreshold)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("window_duration must be positive, got %s", c.WindowDuration.Std())
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	return nil
}

// APIKey returns the oracle API key from the environment, or empty.
func APIKey() string {
	return os.Getenv(APIKeyEnv)
}
