// Package config loads application configuration from a YAML file with
// TID3_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Override92/tid3/internal/match"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Encryption  EncryptionConfig  `yaml:"encryption"`
	Music       MusicConfig       `yaml:"music"`
	Engine      EngineConfig      `yaml:"engine"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EncryptionConfig holds the at-rest key for stored API credentials. A
// passphrase takes precedence over an explicit key; the key is derived
// from it with PBKDF2.
type EncryptionConfig struct {
	Key        string `yaml:"key"`
	Passphrase string `yaml:"passphrase"`
}

// MusicConfig holds music library path settings.
type MusicConfig struct {
	LibraryPath string `yaml:"library_path"`
}

// EngineConfig tunes candidate scoring and ranking.
type EngineConfig struct {
	Weights            match.Weights `yaml:"weights"`
	AutoApplyThreshold float64       `yaml:"auto_apply_threshold"`
	MaxCandidates      int           `yaml:"max_candidates"`
}

// FingerprintConfig holds chromaprint settings.
type FingerprintConfig struct {
	Enabled    bool   `yaml:"enabled"`
	FpcalcPath string `yaml:"fpcalc_path"`
}

// LoggingConfig holds logging settings. An empty FilePath logs to stdout
// only.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	engine := match.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/tid3.db",
		},
		Encryption: EncryptionConfig{},
		Music: MusicConfig{
			LibraryPath: "/music",
		},
		Engine: EngineConfig{
			Weights:            engine.Weights,
			AutoApplyThreshold: engine.AutoApplyThreshold,
			MaxCandidates:      engine.MaxCandidates,
		},
		Fingerprint: FingerprintConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// EngineSettings converts the engine section to a match.Config.
func (c *Config) EngineSettings() match.Config {
	return match.Config{
		Weights:            c.Engine.Weights,
		AutoApplyThreshold: c.Engine.AutoApplyThreshold,
		MaxCandidates:      c.Engine.MaxCandidates,
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("TID3_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TID3_ENCRYPTION_KEY"); v != "" {
		c.Encryption.Key = v
	}
	if v := os.Getenv("TID3_PASSPHRASE"); v != "" {
		c.Encryption.Passphrase = v
	}
	if v := os.Getenv("TID3_MUSIC_PATH"); v != "" {
		c.Music.LibraryPath = v
	}
	if v := os.Getenv("TID3_AUTO_APPLY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.AutoApplyThreshold = f
		}
	}
	if v := os.Getenv("TID3_FPCALC_PATH"); v != "" {
		c.Fingerprint.FpcalcPath = v
	}
	if v := os.Getenv("TID3_FINGERPRINT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Fingerprint.Enabled = b
		}
	}
	if v := os.Getenv("TID3_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TID3_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("TID3_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Engine.AutoApplyThreshold < 0 || c.Engine.AutoApplyThreshold > 1 {
		return fmt.Errorf("auto_apply_threshold must be between 0 and 1, got %v", c.Engine.AutoApplyThreshold)
	}
	if c.Engine.MaxCandidates < 1 {
		return fmt.Errorf("max_candidates must be at least 1, got %d", c.Engine.MaxCandidates)
	}
	if c.Engine.Weights.Sum() <= 0 {
		return fmt.Errorf("scoring weights must sum to a positive value")
	}
	return nil
}
