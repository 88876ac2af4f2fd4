// Package config provides configuration management for the Quant Ninja application.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// StorageDrivers lists the accepted storage.driver values
var StorageDrivers = []string{"file", "sqlite", "postgres", "redis"}

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Register custom validation functions
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("storagedriver", validateStorageDriver)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateStorageDriver validates the snapshot store driver
func validateStorageDriver(fl validator.FieldLevel) bool {
	driver := fl.Field().String()
	for _, d := range StorageDrivers {
		if d == driver {
			return true
		}
	}
	return false
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "file", "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s driver", cfg.Storage.Driver)
		}
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
	case "redis":
		if cfg.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis driver")
		}
	}

	if cfg.Oracle.RetryWaitMaxMillis < cfg.Oracle.RetryWaitMinMillis {
		return fmt.Errorf("oracle.retry_wait_max_millis cannot be less than retry_wait_min_millis")
	}

	if cfg.Secrets.Enabled && (cfg.Secrets.Region == "" || cfg.Secrets.SecretName == "") {
		return fmt.Errorf("secrets.region and secrets.secret_name must be set when secrets are enabled")
	}

	if cfg.API.Enabled && cfg.API.Port == cfg.Health.Port {
		return fmt.Errorf("api.port and health.port must differ")
	}

	if cfg.Features.AgentEnabled && cfg.Agent.FrameDir == "" {
		return fmt.Errorf("agent.frame_dir is required when the agent is enabled")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			fmt.Fprintf(&errMsg, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&errMsg, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			fmt.Fprintf(&errMsg, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&errMsg, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&errMsg, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&errMsg, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "storagedriver":
			fmt.Fprintf(&errMsg, "- Field '%s' must be one of: %s, got '%v'\n", field, strings.Join(StorageDrivers, ", "), value)
		default:
			fmt.Fprintf(&errMsg, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg.String())
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		if cfg.Oracle.APIKey == "" {
			return fmt.Errorf("production environment requires oracle.api_key")
		}
		if cfg.Storage.Driver == "file" {
			return fmt.Errorf("production environment should not use the file storage driver")
		}
	}
	return nil
}
