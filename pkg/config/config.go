// Package config loads and validates the gateway configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Storage mode values for StorageConfig.Mode.
const (
	StorageModeLocal = "local"
	StorageModeS3    = "s3"
)

// Config represents the gateway configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SFTPGATE_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Host is the listen address for the SSH listener (default: all interfaces)
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the SSH listener port
	Port int `mapstructure:"port" yaml:"port"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Storage selects and configures the storage backend
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// RoleAssumption enables short-lived S3 credentials via STS AssumeRole.
	// When absent, the S3 backend uses ambient credentials (environment,
	// shared config, instance profile).
	RoleAssumption *RoleAssumptionConfig `mapstructure:"role_assumption" yaml:"role_assumption,omitempty"`

	// Users is the static user list. The same username may appear in
	// multiple entries, one per public key.
	Users []UserConfig `mapstructure:"users" yaml:"users"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the log output format: text or json
	Format string `mapstructure:"format" yaml:"format"`

	// Output is "stdout", "stderr", or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// StorageConfig selects the storage backend and its parameters.
type StorageConfig struct {
	// Mode is "local" or "s3"
	Mode string `mapstructure:"mode" yaml:"mode"`

	// BaseFolder is the root directory for local mode
	BaseFolder string `mapstructure:"base_folder" yaml:"base_folder,omitempty"`

	// Bucket is the S3 bucket for s3 mode
	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`

	// Region is the AWS region for s3 mode (SDK default if empty)
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is an alternate S3 endpoint URL (Localstack, MinIO)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO)
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// RoleAssumptionConfig holds the STS AssumeRole exchange parameters.
// All three fields are required together.
type RoleAssumptionConfig struct {
	// AccessKey is the long-lived access key used for the exchange
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`

	// SecretKey is the long-lived secret key used for the exchange
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// RoleARN is the role to assume
	RoleARN string `mapstructure:"role_arn" yaml:"role_arn"`

	// SessionName is the STS session name (default: "sftpgate")
	SessionName string `mapstructure:"session_name" yaml:"session_name,omitempty"`
}

// UserConfig is one user entry from the configuration file.
type UserConfig struct {
	// Username is the unique, non-blank identifier
	Username string `mapstructure:"username" yaml:"username"`

	// Password is an optional shared secret for password authentication.
	// It is hashed at startup and never kept in memory as plaintext.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// PasswordHash is an optional pre-computed bcrypt hash. Takes
	// precedence over Password when both are set.
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`

	// PublicKey is an optional public key in authorized_keys format.
	// Repeat the username across entries to register multiple keys.
	PublicKey string `mapstructure:"public_key" yaml:"public_key,omitempty"`
}

// MetricsConfig contains Prometheus metrics server configuration.
type MetricsConfig struct {
	// Enabled turns the metrics HTTP endpoint on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics HTTP port
	Port int `mapstructure:"port" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configFileFound {
		if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks that the config file exists and gives instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  sftpgate init\n\n"+
				"Or specify a custom config file:\n"+
				"  sftpgate <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  sftpgate init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions: the file may contain passwords and key material.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the SFTPGATE_ prefix with underscores.
	// Example: SFTPGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("SFTPGATE")
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

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook parses duration strings like "30s" into time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch f.Kind() {
		case reflect.String:
			return time.ParseDuration(data.(string))
		case reflect.Int, reflect.Int64:
			return data, nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, honoring XDG_CONFIG_HOME.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sftpgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sftpgate")
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
