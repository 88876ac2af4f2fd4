// Package config provides configuration management for the Quant Ninja application.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "config/config.yaml"
	envPrefix         = "QUANT_NINJA"
)

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	loadDotEnv()

	// Read the configuration file
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()

	// Read the expanded configuration
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return unmarshal(v)
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing config file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	loadDotEnv()

	v := newViper()
	setDefaults(v)

	// Read and expand the configuration file if it exists
	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// ReloadFromEnv reloads the configuration from QUANT_NINJA_CONFIG_PATH when it is set
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := Load(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// QUANT_NINJA_ORACLE_API_KEY overrides oracle.api_key
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "quant-ninja")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("bankroll.initial", 1000.0)

	v.SetDefault("oracle.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("oracle.vision_model", "gemini-2.5-flash")
	v.SetDefault("oracle.search_model", "gemini-2.5-flash")
	v.SetDefault("oracle.request_timeout_seconds", 60)
	v.SetDefault("oracle.max_retries", 3)
	v.SetDefault("oracle.retry_wait_min_millis", 500)
	v.SetDefault("oracle.retry_wait_max_millis", 10000)
	v.SetDefault("oracle.rate_limit", 1.0)
	v.SetDefault("oracle.cache_ttl_seconds", 300)
	v.SetDefault("oracle.cache_max_size", 256)

	v.SetDefault("agent.frame_dir", "frames")
	v.SetDefault("agent.scan_interval_seconds", 15)
	v.SetDefault("agent.max_failure_count", 5)
	v.SetDefault("agent.failure_window_seconds", 300)
	v.SetDefault("agent.cooldown_seconds", 120)
	v.SetDefault("agent.disarm_on_invalid_screen", true)
	v.SetDefault("agent.log_size", 50)

	v.SetDefault("settlement.interval_seconds", 300)
	v.SetDefault("settlement.batch_size", 5)
	v.SetDefault("settlement.request_timeout_seconds", 45)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.key", "ninja_bets")
	v.SetDefault("storage.path", "data/ninja_bets.json")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout_seconds", 30)
	v.SetDefault("api.write_timeout_seconds", 120)
	v.SetDefault("api.max_upload_bytes", 10<<20)

	v.SetDefault("health.port", 8081)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("features.sync_enabled", true)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv populates the process environment from .env so ${VAR} placeholders resolve
func loadDotEnv() {
	_ = godotenv.Load()
}
