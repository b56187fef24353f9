package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogExport represents where structured logs are exported.
type LogExport string

const (
	LogExportNone   LogExport = "none"
	LogExportStdout LogExport = "stdout"
	LogExportOTLP   LogExport = "otlp"
)

// CredentialStorageType represents the storage backends supported for session
// credentials.
type CredentialStorageType string

const (
	CredentialStorageTypeMemory  CredentialStorageType = "memory"
	CredentialStorageTypeFile    CredentialStorageType = "file"
	CredentialStorageTypeKeyring CredentialStorageType = "keyring"
	CredentialStorageTypeEnv     CredentialStorageType = "env"
)

// SessionScope controls credential partitioning. A shared scope behaves like
// the browser's unscoped localStorage keys; an isolated scope mints a unique
// partition per process, the way the web client gives each tab its own
// session.
type SessionScope string

const (
	SessionScopeShared   SessionScope = "shared"
	SessionScopeIsolated SessionScope = "isolated"
)

// Default configuration values
const (
	DefaultConfigLogFormat   = LogFormatText
	DefaultConfigLogExport   = LogExportNone
	DefaultConfigAPIBaseURL  = "http://localhost:8000"
	DefaultConfigAPITimeout  = 30 * time.Second
	DefaultConfigAuthStorage = CredentialStorageTypeFile
	DefaultConfigAuthScope   = SessionScopeShared
)

// APIConfig holds the upstream platform API configuration.
type APIConfig struct {
	BaseURL string        `json:"base_url" validate:"required,url"`
	Timeout time.Duration `json:"timeout"`
}

// AuthConfig describes how session credentials are stored.
type AuthConfig struct {
	// Storage configuration - where credentials live
	Storage CredentialStorageType `json:"storage" validate:"required,oneof=memory file keyring env"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to credential file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: variable holding a static access token
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier

	// Scope controls whether this process shares the stored session or
	// isolates its own partition.
	Scope SessionScope `json:"scope" validate:"oneof=shared isolated"`
}

// NewCredentialStore creates a credential store for the given scope from the
// authentication configuration.
func (a *AuthConfig) NewCredentialStore(scope string) (credstore.Store, error) {
	switch a.Storage {
	case CredentialStorageTypeMemory:
		return credstore.NewMemoryStore(scope), nil
	case CredentialStorageTypeFile:
		return credstore.NewFileStore(a.File, scope)
	case CredentialStorageTypeKeyring:
		return credstore.NewKeyringStore("doit-cli", a.KeyringUser, scope)
	case CredentialStorageTypeEnv:
		return credstore.NewEnvStore(a.EnvKey)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level `json:"log_level"`
	LogFormat LogFormat  `json:"log_format" validate:"oneof=text json"`
	LogExport LogExport  `json:"log_export" validate:"oneof=none stdout otlp"`
	API       APIConfig  `json:"api"`
	Auth      AuthConfig `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExport == "" {
		c.LogExport = DefaultConfigLogExport
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigAPITimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Auth.Scope == "" {
		c.Auth.Scope = DefaultConfigAuthScope
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case CredentialStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "doit", "credentials.json")
		}
	case CredentialStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case CredentialStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Token rotation needs writable storage; an isolated partition over a
	// single shared environment variable cannot exist.
	if c.Auth.Storage == CredentialStorageTypeEnv && c.Auth.Scope == SessionScopeIsolated {
		return errors.New("isolated session scope requires writable storage, env is read-only")
	}

	switch c.Auth.Storage {
	case CredentialStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case CredentialStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case CredentialStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}
