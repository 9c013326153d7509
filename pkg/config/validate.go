package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ConfigError describes one invalid configuration entry.
// Entry identifies the offending option so startup failures are actionable.
type ConfigError struct {
	Entry  string // configuration path, e.g. "users[2].public_key"
	Reason string
	Err    error // underlying cause, if any
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Entry, e.Reason, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Entry, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Validate checks the configuration with plain rules and returns all
// violations joined into a single error. The server must not start when
// this returns non-nil.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, &ConfigError{
			Entry:  "port",
			Reason: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Port),
		})
	}

	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRoleAssumption(cfg)...)
	errs = append(errs, validateUsers(cfg.Users)...)

	return errors.Join(errs...)
}

func validateLogging(cfg *LoggingConfig) []error {
	var errs []error

	switch strings.ToUpper(cfg.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, &ConfigError{
			Entry:  "logging.level",
			Reason: fmt.Sprintf("must be DEBUG, INFO, WARN or ERROR, got %q", cfg.Level),
		})
	}

	switch strings.ToLower(cfg.Format) {
	case "text", "json":
	default:
		errs = append(errs, &ConfigError{
			Entry:  "logging.format",
			Reason: fmt.Sprintf("must be text or json, got %q", cfg.Format),
		})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []error {
	var errs []error

	switch cfg.Mode {
	case StorageModeLocal:
		if cfg.BaseFolder == "" {
			errs = append(errs, &ConfigError{
				Entry:  "storage.base_folder",
				Reason: "required when storage.mode is local",
			})
		}
	case StorageModeS3:
		if cfg.Bucket == "" {
			errs = append(errs, &ConfigError{
				Entry:  "storage.bucket",
				Reason: "required when storage.mode is s3",
			})
		}
	default:
		errs = append(errs, &ConfigError{
			Entry:  "storage.mode",
			Reason: fmt.Sprintf("must be %q or %q, got %q", StorageModeLocal, StorageModeS3, cfg.Mode),
		})
	}

	return errs
}

// validateRoleAssumption enforces the all-or-nothing rule: the exchange
// needs every field, and a partial block almost certainly means a typo
// rather than an intentional fallback to ambient credentials.
func validateRoleAssumption(cfg *Config) []error {
	ra := cfg.RoleAssumption
	if ra == nil {
		return nil
	}

	var errs []error
	for entry, value := range map[string]string{
		"role_assumption.access_key": ra.AccessKey,
		"role_assumption.secret_key": ra.SecretKey,
		"role_assumption.role_arn":   ra.RoleARN,
	} {
		if value == "" {
			errs = append(errs, &ConfigError{
				Entry:  entry,
				Reason: "required when any role_assumption field is set",
			})
		}
	}

	if len(errs) == 0 && cfg.Storage.Mode != StorageModeS3 {
		errs = append(errs, &ConfigError{
			Entry:  "role_assumption",
			Reason: "only valid when storage.mode is s3",
		})
	}

	return errs
}

func validateUsers(users []UserConfig) []error {
	var errs []error

	// Duplicate entries for the same username are the supported way to
	// register several public keys; only blank usernames are invalid here.
	for i, u := range users {
		if strings.TrimSpace(u.Username) == "" {
			errs = append(errs, &ConfigError{
				Entry:  fmt.Sprintf("users[%d].username", i),
				Reason: "must not be blank",
			})
		}

		// Key decode failures are fatal at startup, not at first connection.
		if u.PublicKey != "" {
			if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(u.PublicKey)); err != nil {
				errs = append(errs, &ConfigError{
					Entry:  fmt.Sprintf("users[%d].public_key", i),
					Reason: fmt.Sprintf("invalid public key for user %q", u.Username),
					Err:    err,
				})
			}
		}
	}

	return errs
}
