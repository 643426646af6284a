// Package config loads and validates stratofs configuration from files,
// environment variables and defaults, and wires configured filesystem
// instances from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete stratofs configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (STRATOFS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Bridge controls the per-instance execution bridge
	Bridge BridgeConfig `mapstructure:"bridge"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Services lists the schemes to register, with per-scheme defaults
	Services []ServiceConfig `mapstructure:"services" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr
	Output string `mapstructure:"output" validate:"required,oneof=stdout stderr"`
}

// BridgeConfig controls the execution bridge.
type BridgeConfig struct {
	// GracePeriod is how long Close waits for in-flight operations before
	// cancelling them
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"required,gt=0"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Enabled turns Prometheus collection on
	Enabled bool `mapstructure:"enabled"`
}

// ServiceConfig registers one scheme with default options.
type ServiceConfig struct {
	// Scheme is the URL scheme to register
	// Valid values: mem, file, badger, s3
	Scheme string `mapstructure:"scheme" validate:"required,oneof=mem file badger s3"`

	// Options holds scheme defaults merged under every URL of this scheme
	// (URL query parameters take precedence)
	Options map[string]string `mapstructure:"options"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses the default
//     location under $XDG_CONFIG_HOME/stratofs)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file
// settings. Environment variables use the STRATOFS_ prefix, for example
// STRATOFS_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("STRATOFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error; defaults apply.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path, preferring
// XDG_CONFIG_HOME over ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stratofs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "stratofs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
