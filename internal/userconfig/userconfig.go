// Package userconfig provides persistent user settings for mealgroom.
// Settings are stored in $MEALGROOM_HOME/config.toml and modified via the
// `mealgroom config` command. Environment variables always take precedence.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/kitchenops/mealgroom/internal/config"
)

// Config represents user-configurable defaults.
type Config struct {
	// BatchWidth is the default fan-out concurrency for ingredient updates.
	BatchWidth int `toml:"batch_width"`

	// SimilarityThreshold is the default cutoff for similar-pattern
	// suggestions.
	SimilarityThreshold float64 `toml:"similarity_threshold"`

	// SessionFile overrides the session state file location.
	SessionFile string `toml:"session_file"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		BatchWidth:          config.DefaultBatchWidth,
		SimilarityThreshold: config.DefaultSimilarityThreshold,
	}
}

// Load reads the config file at the given path. Returns defaults if the
// file doesn't exist; returns an error only for unreadable or unparsable
// files.
func Load(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), userCfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return userCfg, nil
}

// Save writes the configuration to the given path, creating the parent
// directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Apply folds file-backed defaults into cfg for every setting whose
// environment variable is unset. Env wins over file; file wins over
// built-in defaults.
func (c *Config) Apply(cfg *config.Config) {
	if os.Getenv(config.EnvBatchWidth) == "" && c.BatchWidth >= 1 && c.BatchWidth <= config.MaxPoolSize {
		cfg.BatchWidth = c.BatchWidth
	}
	if os.Getenv(config.EnvSimilarityThreshold) == "" && c.SimilarityThreshold >= 0.5 && c.SimilarityThreshold <= 1.0 {
		cfg.SimilarityThreshold = c.SimilarityThreshold
	}
	if os.Getenv(config.EnvSessionFile) == "" && c.SessionFile != "" {
		cfg.SessionFile = c.SessionFile
	}
}

// Get returns the value of a config key as a string.
// Returns empty string and false if the key doesn't exist.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case "batch_width":
		return strconv.Itoa(c.BatchWidth), true
	case "similarity_threshold":
		return strconv.FormatFloat(c.SimilarityThreshold, 'f', -1, 64), true
	case "session_file":
		return c.SessionFile, true
	default:
		return "", false
	}
}

// Set updates a config value from a string.
// Returns an error if the key doesn't exist or the value is invalid.
func (c *Config) Set(key, value string) error {
	switch key {
	case "batch_width":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > config.MaxPoolSize {
			return fmt.Errorf("invalid value for batch_width: must be an integer between 1 and %d", config.MaxPoolSize)
		}
		c.BatchWidth = n
		return nil
	case "similarity_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0.5 || f > 1.0 {
			return fmt.Errorf("invalid value for similarity_threshold: must be a number between 0.5 and 1.0")
		}
		c.SimilarityThreshold = f
		return nil
	case "session_file":
		c.SessionFile = value
		return nil
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

// AvailableKeys returns all configurable keys with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"batch_width":          "Fan-out concurrency for batch ingredient updates (1-10)",
		"similarity_threshold": "Minimum ratio for similar-pattern suggestions (0.5-1.0)",
		"session_file":         "Path of the session state file",
	}
}
