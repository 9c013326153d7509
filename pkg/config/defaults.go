package config

import (
	"strings"
	"time"
)

// Default values applied by ApplyDefaults.
const (
	DefaultPort            = 22
	DefaultMetricsPort     = 9090
	DefaultShutdownTimeout = 30 * time.Second
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	applyStorageDefaults(&cfg.Storage)
	applyRoleAssumptionDefaults(cfg.RoleAssumption)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyStorageDefaults sets storage defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Mode == "" {
		cfg.Mode = StorageModeLocal
	}
	cfg.Mode = strings.ToLower(cfg.Mode)
}

// applyRoleAssumptionDefaults sets role-assumption defaults.
func applyRoleAssumptionDefaults(cfg *RoleAssumptionConfig) {
	if cfg == nil {
		return
	}
	if cfg.SessionName == "" {
		cfg.SessionName = "sftpgate"
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a configuration with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
