// Package config loads the link-forge application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/link-forge/pkg/filesystem"
)

// Config holds the central application configuration
type Config struct {
	// HTTP server settings
	Server struct {
		Addr            string        `mapstructure:"addr"`             // Listen address
		AllowedOrigins  []string      `mapstructure:"allowed_origins"`  // CORS origins, empty disables CORS
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // Drain window on shutdown
	} `mapstructure:"server"`

	// Preview pipeline settings
	Preview struct {
		CacheTTL     time.Duration `mapstructure:"cache_ttl"`      // Entry freshness window
		CacheSize    int           `mapstructure:"cache_size"`     // Max cached previews
		Timeout      time.Duration `mapstructure:"timeout"`        // Per-attempt fetch timeout
		MaxRetries   int           `mapstructure:"max_retries"`    // Total fetch attempts
		RetryBackoff time.Duration `mapstructure:"retry_backoff"`  // Fixed pause between attempts
		MaxPerSecond float64       `mapstructure:"max_per_second"` // Process-wide outbound rate
		RateStrategy string        `mapstructure:"rate_strategy"`  // interval, token_bucket or none
		MaxBodyBytes int64         `mapstructure:"max_body_bytes"` // Response body cap
	} `mapstructure:"preview"`

	// Image ingestion settings
	Image struct {
		MaxBytes     int64 `mapstructure:"max_bytes"`     // Upload size cap
		MaxDimension int   `mapstructure:"max_dimension"` // Longest allowed edge after resize
		Quality      int   `mapstructure:"quality"`       // JPEG re-encode quality
	} `mapstructure:"image"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	// If path is relative, try current directory first, then executable directory
	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			if execPath, err := filesystem.GetDefaultPath(path); err == nil {
				if _, err := os.Stat(execPath); err == nil {
					path = execPath
				}
			}
			// If both fail, use original path and let Viper handle the error
		}
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Set default values
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.allowed_origins", []string{})
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("preview.cache_ttl", "1h")
	viper.SetDefault("preview.cache_size", 1024)
	viper.SetDefault("preview.timeout", "10s")
	viper.SetDefault("preview.max_retries", 2)
	viper.SetDefault("preview.retry_backoff", "1s")
	viper.SetDefault("preview.max_per_second", 2.0)
	viper.SetDefault("preview.rate_strategy", "interval")
	viper.SetDefault("preview.max_body_bytes", 2*1024*1024)

	viper.SetDefault("image.max_bytes", 5*1024*1024)
	viper.SetDefault("image.max_dimension", 2000)
	viper.SetDefault("image.quality", 85)

	// Read configuration file
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	if path == "" {
		path = "config.yaml"
	}

	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			if execPath, err := filesystem.GetDefaultPath(path); err == nil {
				if _, err := os.Stat(execPath); err == nil {
					path = execPath
				}
			}
		}
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.Set("server.addr", config.Server.Addr)
	viper.Set("server.allowed_origins", config.Server.AllowedOrigins)
	viper.Set("server.shutdown_timeout", config.Server.ShutdownTimeout.String())

	viper.Set("preview.cache_ttl", config.Preview.CacheTTL.String())
	viper.Set("preview.cache_size", config.Preview.CacheSize)
	viper.Set("preview.timeout", config.Preview.Timeout.String())
	viper.Set("preview.max_retries", config.Preview.MaxRetries)
	viper.Set("preview.retry_backoff", config.Preview.RetryBackoff.String())
	viper.Set("preview.max_per_second", config.Preview.MaxPerSecond)
	viper.Set("preview.rate_strategy", config.Preview.RateStrategy)
	viper.Set("preview.max_body_bytes", config.Preview.MaxBodyBytes)

	viper.Set("image.max_bytes", config.Image.MaxBytes)
	viper.Set("image.max_dimension", config.Image.MaxDimension)
	viper.Set("image.quality", config.Image.Quality)

	return viper.WriteConfig()
}
