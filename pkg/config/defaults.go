package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyBridgeDefaults(&cfg.Bridge)

	// Register every built-in scheme when none are configured.
	if len(cfg.Services) == 0 {
		cfg.Services = []ServiceConfig{
			{Scheme: "mem"},
			{Scheme: "file"},
			{Scheme: "badger"},
			{Scheme: "s3"},
		}
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyBridgeDefaults sets execution bridge defaults.
func applyBridgeDefaults(cfg *BridgeConfig) {
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = 30 * time.Second
	}
}
