package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment" validate:"omitempty,oneof=development production"` // "development" or "production"
	API         APIConfig     `toml:"api"`
	Upload      UploadConfig  `toml:"upload"`
	Sync        SyncConfig    `toml:"sync"`
	Notify      NotifyConfig  `toml:"notify"`
	Logging     LoggingConfig `toml:"logging"`
}

// APIConfig contains connection settings for the ingestion gateway
type APIConfig struct {
	BaseURL   string `toml:"base_url" validate:"required,url"` // Gateway base URL including the /api prefix
	Timeout   string `toml:"timeout"`                          // e.g., "30s" - per-request HTTP timeout
	RateLimit int    `toml:"rate_limit" validate:"gte=0"`      // Max requests per second (0 = unlimited)
}

// UploadConfig contains upload submission behavior
type UploadConfig struct {
	ConfirmDelay string `toml:"confirm_delay"` // e.g., "2s" - how long the confirmation message lingers
}

// SyncConfig contains document synchronizer behavior
type SyncConfig struct {
	PollInterval string `toml:"poll_interval"` // e.g., "5s" - how often the collection is refreshed
}

// NotifyConfig contains the optional change-notification listener settings
type NotifyConfig struct {
	Enabled bool   `toml:"enabled"` // Enable the WebSocket change listener (polling continues regardless)
	URL     string `toml:"url"`     // e.g., "ws://localhost:8080/ws" - notification endpoint
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "trace", "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in docket.toml; validation limits
// for uploads are fixed by the gateway and live in the uploader package.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		API: APIConfig{
			BaseURL:   "http://localhost:8080/api",
			Timeout:   "30s",
			RateLimit: 10,
		},
		Upload: UploadConfig{
			ConfirmDelay: "2s",
		},
		Sync: SyncConfig{
			PollInterval: "5s",
		},
		Notify: NotifyConfig{
			Enabled: false,
			URL:     "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
// Example: LoadFromFiles("base.toml", "override.toml") - override.toml settings take precedence over base.toml
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: DOCKET_ENV, fallback: GO_ENV)
	if env := os.Getenv("DOCKET_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// API configuration
	if baseURL := os.Getenv("DOCKET_API_BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}
	if timeout := os.Getenv("DOCKET_API_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.API.Timeout = timeout
		}
	}
	if rateLimit := os.Getenv("DOCKET_API_RATE_LIMIT"); rateLimit != "" {
		if rl, err := strconv.Atoi(rateLimit); err == nil {
			config.API.RateLimit = rl
		}
	}

	// Upload configuration
	if confirmDelay := os.Getenv("DOCKET_UPLOAD_CONFIRM_DELAY"); confirmDelay != "" {
		if _, err := time.ParseDuration(confirmDelay); err == nil {
			config.Upload.ConfirmDelay = confirmDelay
		}
	}

	// Sync configuration
	if pollInterval := os.Getenv("DOCKET_SYNC_POLL_INTERVAL"); pollInterval != "" {
		if _, err := time.ParseDuration(pollInterval); err == nil {
			config.Sync.PollInterval = pollInterval
		}
	}

	// Notify configuration
	if enabled := os.Getenv("DOCKET_NOTIFY_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Notify.Enabled = e
		}
	}
	if url := os.Getenv("DOCKET_NOTIFY_URL"); url != "" {
		config.Notify.URL = url
	}

	// Logging configuration
	if level := os.Getenv("DOCKET_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("DOCKET_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("DOCKET_LOG_OUTPUT"); output != "" {
		// Split comma-separated output types
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if timeFormat := os.Getenv("DOCKET_LOG_TIME_FORMAT"); timeFormat != "" {
		config.Logging.TimeFormat = timeFormat
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, apiBaseURL string) {
	// Command-line flags have highest priority
	if apiBaseURL != "" {
		config.API.BaseURL = apiBaseURL
	}
}

// Validate checks the merged configuration using go-playground/validator tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// RequestTimeout returns the parsed API timeout, falling back to 30s when unset or invalid.
func (c APIConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Delay returns the parsed confirmation delay, falling back to 2s when unset or invalid.
// A zero value ("0s") is respected so tests can disable the linger entirely.
func (c UploadConfig) Delay() time.Duration {
	d, err := time.ParseDuration(c.ConfirmDelay)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// Interval returns the parsed poll interval, falling back to 5s when unset or invalid.
func (c SyncConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
