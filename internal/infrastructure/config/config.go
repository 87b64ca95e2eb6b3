// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	threshold := cfg.Matching.AcceptThreshold
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Matching      MatchingConfig      `yaml:"matching"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MatchingConfig tunes the reconciliation engine
type MatchingConfig struct {
	AcceptThreshold     float64 `yaml:"accept_threshold"`
	FuzzyDateWindowDays int     `yaml:"fuzzy_date_window_days"`
	FuzzyConfidence     float64 `yaml:"fuzzy_confidence"`
	Workers             int     `yaml:"workers"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("RECON_DB_PATH", "recon.db"),
		},
		Server: ServerConfig{
			Port:           getEnvInt("RECON_API_PORT", 8080),
			AllowedOrigins: splitEnv("RECON_ALLOWED_ORIGINS"),
		},
		Matching: MatchingConfig{
			AcceptThreshold:     getEnvFloat("RECON_ACCEPT_THRESHOLD", 0.7),
			FuzzyDateWindowDays: getEnvInt("RECON_FUZZY_DATE_WINDOW_DAYS", 7),
			FuzzyConfidence:     getEnvFloat("RECON_FUZZY_CONFIDENCE", 0.8),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("RECON_LOG_LEVEL", "info"),
				Format: getEnv("RECON_LOG_FORMAT", "text"),
			},
		},
	}

	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries config.yaml first, then falls back to env vars
func LoadOrEnv() *Config {
	if cfg, err := Load("config.yaml"); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate checks field ranges the engine depends on
func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	if c.Matching.AcceptThreshold < 0 || c.Matching.AcceptThreshold > 1 {
		return fmt.Errorf("matching.accept_threshold must be in [0,1], got %v", c.Matching.AcceptThreshold)
	}
	if c.Matching.FuzzyConfidence < 0 || c.Matching.FuzzyConfidence > 1 {
		return fmt.Errorf("matching.fuzzy_confidence must be in [0,1], got %v", c.Matching.FuzzyConfidence)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "recon.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Matching.AcceptThreshold == 0 {
		c.Matching.AcceptThreshold = 0.7
	}
	if c.Matching.FuzzyDateWindowDays == 0 {
		c.Matching.FuzzyDateWindowDays = 7
	}
	if c.Matching.FuzzyConfidence == 0 {
		c.Matching.FuzzyConfidence = 0.8
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitEnv(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
