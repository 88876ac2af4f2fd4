// Package config provides configuration management for the Quant Ninja application.
package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Bankroll   BankrollConfig   `mapstructure:"bankroll" validate:"required"`
	Oracle     OracleConfig     `mapstructure:"oracle" validate:"required"`
	Agent      AgentConfig      `mapstructure:"agent" validate:"required"`
	Settlement SettlementConfig `mapstructure:"settlement" validate:"required"`
	Storage    StorageConfig    `mapstructure:"storage" validate:"required"`
	API        APIConfig        `mapstructure:"api" validate:"required"`
	Health     HealthConfig     `mapstructure:"health" validate:"required"`
	Metrics    MetricsConfig    `mapstructure:"metrics" validate:"required"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Features   FeaturesConfig   `mapstructure:"features"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// BankrollConfig holds the fixed starting capital every financial view is derived from
type BankrollConfig struct {
	Initial float64 `mapstructure:"initial" validate:"required,gt=0"`
}

// OracleConfig represents the generative API used for extraction and verification
type OracleConfig struct {
	BaseURL               string  `mapstructure:"base_url" validate:"required,url"`
	APIKey                string  `mapstructure:"api_key"`
	VisionModel           string  `mapstructure:"vision_model" validate:"required"`
	SearchModel           string  `mapstructure:"search_model" validate:"required"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
	MaxRetries            int     `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryWaitMinMillis    int     `mapstructure:"retry_wait_min_millis" validate:"gte=0"`
	RetryWaitMaxMillis    int     `mapstructure:"retry_wait_max_millis" validate:"gte=0"`
	RateLimit             float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
	CacheTTLSeconds       int     `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	CacheMaxSize          int     `mapstructure:"cache_max_size" validate:"required,gt=0"`
}

// AgentConfig represents the live scan agent
type AgentConfig struct {
	FrameDir              string `mapstructure:"frame_dir"`
	ScanIntervalSeconds   int    `mapstructure:"scan_interval_seconds" validate:"required,gte=5"`
	MaxFailureCount       int    `mapstructure:"max_failure_count" validate:"required,gt=0"`
	FailureWindowSeconds  int    `mapstructure:"failure_window_seconds" validate:"required,gt=0"`
	CooldownSeconds       int    `mapstructure:"cooldown_seconds" validate:"required,gt=0"`
	DisarmOnInvalidScreen bool   `mapstructure:"disarm_on_invalid_screen"`
	LogSize               int    `mapstructure:"log_size" validate:"required,gt=0,lte=1000"`
}

// SettlementConfig represents the periodic verification of pending positions
type SettlementConfig struct {
	IntervalSeconds       int `mapstructure:"interval_seconds" validate:"required,gte=5"`
	BatchSize             int `mapstructure:"batch_size" validate:"required,gt=0,lte=20"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
}

// StorageConfig represents the snapshot store
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"required,storagedriver"`
	Key    string `mapstructure:"key" validate:"required"`
	// Path is the JSON document for the file driver and the database file for sqlite
	Path          string `mapstructure:"path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
}

// APIConfig represents the dashboard HTTP API
type APIConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	Port                int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeoutSeconds  int      `mapstructure:"read_timeout_seconds" validate:"required,gt=0"`
	WriteTimeoutSeconds int      `mapstructure:"write_timeout_seconds" validate:"required,gt=0"`
	MaxUploadBytes      int64    `mapstructure:"max_upload_bytes" validate:"required,gt=0"`
	AllowedOrigins      []string `mapstructure:"allowed_origins"`
}

// HealthConfig represents the health check server
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// SecretsConfig points at an optional AWS Secrets Manager entry holding credentials
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// FeaturesConfig represents feature flags
type FeaturesConfig struct {
	AgentEnabled      bool `mapstructure:"agent_enabled"`
	AutoSettleEnabled bool `mapstructure:"auto_settle_enabled"`
	SyncEnabled       bool `mapstructure:"sync_enabled"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ScanInterval returns the agent scan interval
func (c *AgentConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// FailureWindow returns the window in which agent failures are counted
func (c *AgentConfig) FailureWindow() time.Duration {
	return time.Duration(c.FailureWindowSeconds) * time.Second
}

// Cooldown returns how long the agent breaker stays open
func (c *AgentConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Interval returns the settlement pass interval
func (c *SettlementConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RequestTimeout returns the bound on a single verification request
func (c *SettlementConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RequestTimeout returns the HTTP timeout for one oracle call
func (c *OracleConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the frame cache lifetime
func (c *OracleConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
