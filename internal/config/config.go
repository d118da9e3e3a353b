package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// PathEnv overrides the config file location
const PathEnv = "INVOICER_CONFIG"

type Config struct {
	// Database settings
	Database DatabaseConfig `yaml:"database"`

	// Invoice defaults
	Invoice InvoiceConfig `yaml:"invoice"`

	// External narrative service
	Narrator NarratorConfig `yaml:"narrator"`

	// Logging
	Log LogConfig `yaml:"log"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // Path to SQLite database
}

type InvoiceConfig struct {
	DefaultDueDays   int `yaml:"default_due_days"`   // Used when the client has no payment terms
	SentBackfillHour int `yaml:"sent_backfill_hour"` // Hour of the invoice date stamped as sent when paid first
}

type NarratorConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	Attempts   int           `yaml:"attempts"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxTokens  int           `yaml:"max_tokens"`

	// Credentials come from the environment only
	APIKey       string `yaml:"-"`
	Organization string `yaml:"-"`
	Project      string `yaml:"-"`
}

type LogConfig struct {
	Level string `yaml:"level"` // zerolog level name
	File  string `yaml:"file"`  // JSON log file; empty = console on stderr
}

// Available reports whether narration through the external service is both
// enabled and configured
func (n NarratorConfig) Available() bool {
	return n.Enabled && n.APIKey != ""
}

// env is the environment overlay. Empty values leave the file setting alone.
type env struct {
	APIKey         string `envconfig:"OPENAI_API_KEY"`
	Organization   string `envconfig:"OPENAI_ORGANIZATION"`
	Project        string `envconfig:"OPENAI_PROJECT"`
	BaseURL        string `envconfig:"OPENAI_BASE_URL"`
	Model          string `envconfig:"OPENAI_MODEL"`
	RequestTimeout int    `envconfig:"OPENAI_REQUEST_TIMEOUT"` // seconds
	LogLevel       string `envconfig:"INVOICER_LOG_LEVEL"`
	DatabasePath   string `envconfig:"INVOICER_DB_PATH"`
}

func configDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir unavailable
		homeDir = "."
	}
	return filepath.Join(homeDir, ".config", "invoicer")
}

// DefaultConfigPath returns ~/.config/invoicer/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// ResolvePath picks the config file: the flag value, then INVOICER_CONFIG,
// then the default location
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultConfigPath()
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(configDir(), "invoicer.db"),
		},
		Invoice: InvoiceConfig{
			DefaultDueDays:   15,
			SentBackfillHour: 13,
		},
		Narrator: NarratorConfig{
			Enabled:    true,
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			Timeout:    10 * time.Second,
			Attempts:   2,
			RetryDelay: 500 * time.Millisecond,
			MaxTokens:  400,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// LoadFile loads config from the given path without the environment
// overlay, or returns defaults if the file doesn't exist
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Load loads config from path and applies the environment overlay
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays OPENAI_* and INVOICER_* environment variables
func (c *Config) ApplyEnv() error {
	var e env
	if err := envconfig.Process("", &e); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	c.Narrator.APIKey = e.APIKey
	c.Narrator.Organization = e.Organization
	c.Narrator.Project = e.Project
	if e.BaseURL != "" {
		c.Narrator.BaseURL = e.BaseURL
	}
	if e.Model != "" {
		c.Narrator.Model = e.Model
	}
	if e.RequestTimeout > 0 {
		c.Narrator.Timeout = time.Duration(e.RequestTimeout) * time.Second
	}
	if e.LogLevel != "" {
		c.Log.Level = e.LogLevel
	}
	if e.DatabasePath != "" {
		c.Database.Path = e.DatabasePath
	}
	return nil
}

// Validate returns an error if a setting is out of range
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Invoice.DefaultDueDays < 0 {
		return fmt.Errorf("invoice.default_due_days cannot be negative")
	}
	if c.Invoice.SentBackfillHour < 0 || c.Invoice.SentBackfillHour > 23 {
		return fmt.Errorf("invoice.sent_backfill_hour must be between 0 and 23")
	}
	if c.Narrator.Attempts < 1 {
		return fmt.Errorf("narrator.attempts must be at least 1")
	}
	return nil
}

// Set assigns one setting by its dotted YAML key
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "database.path":
		c.Database.Path = value
	case "invoice.default_due_days":
		c.Invoice.DefaultDueDays, err = strconv.Atoi(value)
	case "invoice.sent_backfill_hour":
		c.Invoice.SentBackfillHour, err = strconv.Atoi(value)
	case "narrator.enabled":
		c.Narrator.Enabled, err = strconv.ParseBool(value)
	case "narrator.base_url":
		c.Narrator.BaseURL = value
	case "narrator.model":
		c.Narrator.Model = value
	case "narrator.timeout":
		c.Narrator.Timeout, err = time.ParseDuration(value)
	case "narrator.attempts":
		c.Narrator.Attempts, err = strconv.Atoi(value)
	case "narrator.retry_delay":
		c.Narrator.RetryDelay, err = time.ParseDuration(value)
	case "narrator.max_tokens":
		c.Narrator.MaxTokens, err = strconv.Atoi(value)
	case "log.level":
		c.Log.Level = value
	case "log.file":
		c.Log.File = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Validate()
}

// Save writes the config to the given path
func (c *Config) Save(path string) error {
	// Create parent directories if they don't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDirectories creates the database directory
func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0700)
}
