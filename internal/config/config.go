package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for rbxsync.
type Config struct {
	CatalogPath string    `mapstructure:"catalog_path"`
	PageSize    int       `mapstructure:"page_size"`
	MaxRetries  int       `mapstructure:"max_retries"`
	RateLimit   float64   `mapstructure:"rate_limit"`
	LogLevel    string    `mapstructure:"log_level"`
	API         APIConfig `mapstructure:"api"`
	Git         GitConfig `mapstructure:"git"`
}

// APIConfig holds platform API settings.
type APIConfig struct {
	Key     string `mapstructure:"key"`
	BaseURL string `mapstructure:"base_url"`
}

// GitConfig holds catalog repository settings.
type GitConfig struct {
	AutoCommit bool `mapstructure:"auto_commit"`
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("catalog_path", "products.yaml")
	v.SetDefault("page_size", 100)
	v.SetDefault("max_retries", 5)
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("api.base_url", "https://apis.roblox.com")
	v.SetDefault("git.auto_commit", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("rbxsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/rbxsync")
	}

	v.SetEnvPrefix("RBXSYNC")
	v.AutomaticEnv()

	// The credential keeps its historical environment name.
	_ = v.BindEnv("api.key", "RBX_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if !filepath.IsAbs(cfg.CatalogPath) {
		abs, err := filepath.Abs(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("resolving catalog path: %w", err)
		}
		cfg.CatalogPath = abs
	}

	return &cfg, nil
}
