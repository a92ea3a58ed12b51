// Package config loads mealgroom configuration from the environment.
//
// Required settings (server URL, API token) fail startup when absent.
// Optional settings fall back to defaults, with out-of-range values clamped
// and a warning printed to stderr rather than aborting.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvServerURL is the base URL of the Mealie instance.
	EnvServerURL = "MEALIE_URL"

	// EnvAPIToken is the Bearer credential. Never logged.
	EnvAPIToken = "MEALIE_API_KEY"

	// EnvHome overrides the default mealgroom home directory.
	EnvHome = "MEALGROOM_HOME"

	// EnvBatchWidth is the fan-out concurrency for ingredient updates.
	EnvBatchWidth = "MEALGROOM_BATCH_WIDTH"

	// EnvSimilarityThreshold is the minimum edit-distance ratio for
	// similar-pattern suggestions.
	EnvSimilarityThreshold = "MEALGROOM_SIMILARITY_THRESHOLD"

	// EnvSessionFile overrides the session state file location.
	EnvSessionFile = "MEALGROOM_SESSION_FILE"

	// EnvRequestTimeout is the per-request total deadline.
	EnvRequestTimeout = "MEALGROOM_REQUEST_TIMEOUT"

	// EnvMaxRetries is the transient retry budget per request.
	EnvMaxRetries = "MEALGROOM_MAX_RETRIES"

	// DefaultBatchWidth is the default fan-out concurrency.
	DefaultBatchWidth = 10

	// DefaultSimilarityThreshold is the default suggestion cutoff.
	DefaultSimilarityThreshold = 0.85

	// DefaultRequestTimeout is the default per-request deadline.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultMaxRetries is the default transient retry budget.
	DefaultMaxRetries = 3

	// MaxPoolSize is the hard cap on simultaneous requests to the recipe
	// service. Batch width may not exceed it.
	MaxPoolSize = 10
)

// Error marks a configuration problem, letting the CLI exit with its
// dedicated code instead of the general one.
type Error struct {
	err error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

func newError(format string, args ...any) error {
	return &Error{err: fmt.Errorf(format, args...)}
}

// Config holds the validated runtime configuration.
type Config struct {
	ServerURL           string
	Token               string
	HomeDir             string // $MEALGROOM_HOME, default ~/.mealgroom
	ConfigFile          string // $MEALGROOM_HOME/config.toml
	SessionFile         string // $MEALGROOM_HOME/session-state.json
	BatchWidth          int
	SimilarityThreshold float64
	RequestTimeout      time.Duration
	MaxRetries          int
}

// FromEnv builds a Config from environment variables. It returns an error
// for missing required settings or a batch width above the connection pool
// size; out-of-range optional values are clamped with a stderr warning.
func FromEnv() (*Config, error) {
	url := strings.TrimRight(strings.TrimSpace(os.Getenv(EnvServerURL)), "/")
	if url == "" {
		return nil, newError("%s is not set", EnvServerURL)
	}
	token := strings.TrimSpace(os.Getenv(EnvAPIToken))
	if token == "" {
		return nil, newError("%s is not set", EnvAPIToken)
	}

	home, err := HomeDir()
	if err != nil {
		return nil, &Error{err: err}
	}

	width, err := getBatchWidth()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerURL:           url,
		Token:               token,
		HomeDir:             home,
		ConfigFile:          FileIn(home),
		SessionFile:         filepath.Join(home, "session-state.json"),
		BatchWidth:          width,
		SimilarityThreshold: getSimilarityThreshold(),
		RequestTimeout:      getRequestTimeout(),
		MaxRetries:          getMaxRetries(),
	}

	if sf := os.Getenv(EnvSessionFile); sf != "" {
		cfg.SessionFile = sf
	}

	return cfg, nil
}

// HomeDir resolves the mealgroom home directory without requiring the
// server settings, for commands that only touch local files.
func HomeDir() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(userHome, ".mealgroom"), nil
}

// FileIn returns the config file path within a home directory.
func FileIn(home string) string {
	return filepath.Join(home, "config.toml")
}

// EnsureHomeDir creates the mealgroom home directory if needed.
func (c *Config) EnsureHomeDir() error {
	if err := os.MkdirAll(c.HomeDir, 0755); err != nil {
		return fmt.Errorf("create home directory %s: %w", c.HomeDir, err)
	}
	return nil
}

// getBatchWidth reads the fan-out width. A width above MaxPoolSize would let
// fan-out workers starve each other on the shared connection pool, so that is
// a hard error rather than a clamp.
func getBatchWidth() (int, error) {
	envValue := os.Getenv(EnvBatchWidth)
	if envValue == "" {
		return DefaultBatchWidth, nil
	}

	n, err := strconv.Atoi(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %d\n",
			EnvBatchWidth, envValue, DefaultBatchWidth)
		return DefaultBatchWidth, nil
	}
	if n < 1 {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%d), using minimum 1\n",
			EnvBatchWidth, n)
		return 1, nil
	}
	if n > MaxPoolSize {
		return 0, newError("%s (%d) exceeds the connection pool size (%d)",
			EnvBatchWidth, n, MaxPoolSize)
	}
	return n, nil
}

// getSimilarityThreshold reads the suggestion cutoff, clamped to [0.5, 1.0].
func getSimilarityThreshold() float64 {
	envValue := os.Getenv(EnvSimilarityThreshold)
	if envValue == "" {
		return DefaultSimilarityThreshold
	}

	f, err := strconv.ParseFloat(envValue, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %.2f\n",
			EnvSimilarityThreshold, envValue, DefaultSimilarityThreshold)
		return DefaultSimilarityThreshold
	}
	if f < 0.5 {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%.2f), using minimum 0.5\n",
			EnvSimilarityThreshold, f)
		return 0.5
	}
	if f > 1.0 {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%.2f), using maximum 1.0\n",
			EnvSimilarityThreshold, f)
		return 1.0
	}
	return f
}

// getRequestTimeout reads the per-request deadline, clamped to [1s, 2m].
// Accepts duration strings like "10s", "30s", "1m".
func getRequestTimeout() time.Duration {
	envValue := os.Getenv(EnvRequestTimeout)
	if envValue == "" {
		return DefaultRequestTimeout
	}

	d, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvRequestTimeout, envValue, DefaultRequestTimeout)
		return DefaultRequestTimeout
	}
	if d < 1*time.Second {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum 1s\n",
			EnvRequestTimeout, d)
		return 1 * time.Second
	}
	if d > 2*time.Minute {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum 2m\n",
			EnvRequestTimeout, d)
		return 2 * time.Minute
	}
	return d
}

// getMaxRetries reads the transient retry budget, clamped to [0, 10].
func getMaxRetries() int {
	envValue := os.Getenv(EnvMaxRetries)
	if envValue == "" {
		return DefaultMaxRetries
	}

	n, err := strconv.Atoi(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %d\n",
			EnvMaxRetries, envValue, DefaultMaxRetries)
		return DefaultMaxRetries
	}
	if n < 0 {
		fmt.Fprintf(os.Stderr, "Warning: %s negative (%d), using 0\n",
			EnvMaxRetries, n)
		return 0
	}
	if n > 10 {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%d), using maximum 10\n",
			EnvMaxRetries, n)
		return 10
	}
	return n
}
