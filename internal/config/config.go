package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Database paths
	DBPath    string `mapstructure:"db-path"`
	FSMDBPath string `mapstructure:"fsm-db-path"`

	// Marketplace catalog (snapshot refresh)
	CatalogURL     string        `mapstructure:"catalog-url"`
	CatalogToken   string        `mapstructure:"catalog-token"`
	CatalogTimeout time.Duration `mapstructure:"catalog-timeout"`

	// S3 backups
	S3Bucket    string `mapstructure:"s3-bucket"`
	S3Region    string `mapstructure:"s3-region"`
	S3Prefix    string `mapstructure:"s3-prefix"`
	S3Anonymous bool   `mapstructure:"s3-anonymous"`

	// Input limits
	MaxLineQuantity int `mapstructure:"max-line-quantity"`
	MaxTextLength   int `mapstructure:"max-text-length"`

	// FSM configuration
	FSMMaxRetries int `mapstructure:"fsm-max-retries"`

	LogLevel string `mapstructure:"log-level"`
}

// Load reads configuration from .env, environment, config file, and defaults
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	viper.SetDefault("db-path", ".artifacts/cart.db")
	viper.SetDefault("fsm-db-path", ".artifacts/fsm")
	viper.SetDefault("catalog-url", "")
	viper.SetDefault("catalog-token", "")
	viper.SetDefault("catalog-timeout", 10*time.Second)
	viper.SetDefault("s3-bucket", "")
	viper.SetDefault("s3-region", "us-east-1")
	viper.SetDefault("s3-prefix", "cart-backups")
	viper.SetDefault("s3-anonymous", false)
	viper.SetDefault("max-line-quantity", 0)
	viper.SetDefault("max-text-length", 2000)
	viper.SetDefault("fsm-max-retries", 3)
	viper.SetDefault("log-level", "info")

	// Environment variables (CARTSTORE_DB_PATH, etc.)
	viper.SetEnvPrefix("CARTSTORE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.cartstore")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db-path cannot be empty")
	}
	if c.MaxLineQuantity < 0 {
		return fmt.Errorf("max-line-quantity must be non-negative")
	}
	if c.MaxTextLength <= 0 {
		return fmt.Errorf("max-text-length must be positive")
	}
	if c.CatalogTimeout < 0 {
		return fmt.Errorf("catalog-timeout must be non-negative")
	}
	if c.FSMMaxRetries < 0 {
		return fmt.Errorf("fsm-max-retries must be non-negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log-level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return level, nil
}
