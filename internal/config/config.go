// ABOUTME: Configuration loading and parsing for chatsync
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete chatsync configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig holds backend endpoint configuration
type RemoteConfig struct {
	URL         string `yaml:"url"`
	BearerToken string `yaml:"bearer_token"`

	KnowledgeTimeout time.Duration `yaml:"-"`
	QueryTimeout     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	KnowledgeTimeoutRaw string `yaml:"knowledge_timeout"`
	QueryTimeoutRaw     string `yaml:"query_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultPath returns the standard config file location under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(dir, "chatsync", "config.yaml"), nil
}

// Default returns the baseline configuration used when no config file
// exists. The database lands next to the config file.
func Default() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
	if dir, err := os.UserConfigDir(); err == nil {
		cfg.Database.Path = filepath.Join(dir, "chatsync", "chatsync.db")
	} else {
		cfg.Database.Path = "chatsync.db"
	}
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Fields absent from the file keep their Default() values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Remote.KnowledgeTimeoutRaw != "" {
		cfg.Remote.KnowledgeTimeout, err = time.ParseDuration(cfg.Remote.KnowledgeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing knowledge_timeout %q: %w", cfg.Remote.KnowledgeTimeoutRaw, err)
		}
	}

	if cfg.Remote.QueryTimeoutRaw != "" {
		cfg.Remote.QueryTimeout, err = time.ParseDuration(cfg.Remote.QueryTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing query_timeout %q: %w", cfg.Remote.QueryTimeoutRaw, err)
		}
	}

	return nil
}
