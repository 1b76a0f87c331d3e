// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config represents the application configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults, environment variables, or CLI flags.
type Config struct {
	// Storage
	Store       string `json:"store,omitempty" yaml:"store,omitempty"`               // "postgres" or "sqlite"
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL URL or SQLite path

	// Models
	APIKey         string `json:"api_key,omitempty" yaml:"api_key,omitempty"`                 // Gemini API key
	LiteModel      string `json:"lite_model,omitempty" yaml:"lite_model,omitempty"`           // Override for the lite tier
	StandardModel  string `json:"standard_model,omitempty" yaml:"standard_model,omitempty"`   // Override for the standard tier
	AdvancedModel  string `json:"advanced_model,omitempty" yaml:"advanced_model,omitempty"`   // Override for the advanced tier
	EmbeddingModel string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"` // Embedding model name

	// Server
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Behavior
	Verbose  bool      `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Pipeline *Pipeline `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// FromEnv builds a Config from environment variables.
// godotenv has usually populated the environment by the time this runs.
func FromEnv() Config {
	return Config{
		Store:          os.Getenv("DOCDNA_STORE"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIKey:         os.Getenv("GEMINI_API_KEY"),
		EmbeddingModel: os.Getenv("DOCDNA_EMBEDDING_MODEL"),
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	switch c.Store {
	case "", StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("config error: unknown store %q (want %q or %q)", c.Store, StorePostgres, StoreSQLite)
	}

	if c.Store == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'database_url' is required for the postgres store")
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	if c.Pipeline != nil {
		if err := c.Pipeline.WithDefaults().Validate(); err != nil {
			return err
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to layer file values over environment values and built-in defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Store == "" {
		result.Store = defaults.Store
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.LiteModel == "" {
		result.LiteModel = defaults.LiteModel
	}
	if result.StandardModel == "" {
		result.StandardModel = defaults.StandardModel
	}
	if result.AdvancedModel == "" {
		result.AdvancedModel = defaults.AdvancedModel
	}
	if result.EmbeddingModel == "" {
		result.EmbeddingModel = defaults.EmbeddingModel
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.Pipeline == nil {
		result.Pipeline = defaults.Pipeline
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// PipelineConfig returns the effective pipeline thresholds.
func (c *Config) PipelineConfig() Pipeline {
	if c.Pipeline == nil {
		return DefaultPipeline()
	}
	return c.Pipeline.WithDefaults()
}

// StoreDriver returns the configured store, inferring postgres from a postgres URL.
func (c *Config) StoreDriver() string {
	if c.Store != "" {
		return c.Store
	}
	if strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return StorePostgres
	}
	return StoreSQLite
}
