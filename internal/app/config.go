package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for the refresh token.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat      = LogFormatText
	DefaultConfigTokenStorage   = TokenStorageTypeFile
	DefaultConfigSettingsFile   = ".devopsauthrc"
	DefaultConfigTokenFile      = ".devopsauthtoken"
	DefaultConfigKeyringService = "vsts-npm-auth-refresh-token"
)

// Config holds the process configuration assembled from environment and flags.
// Tool settings such as tokenEndpoint live in the settings file instead.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level `json:"log_level"`
	LogFormat LogFormat  `json:"log_format" validate:"oneof=text json"`

	// ConfigFile is the settings file path.
	ConfigFile string `json:"config" validate:"required"`

	// TokenFile overrides the token file path. When empty the tokenfile setting
	// is used, then DefaultConfigTokenFile in the working directory.
	TokenFile string `json:"tokenfile,omitempty"`

	TokenStorage TokenStorageType `json:"token_storage" validate:"required,oneof=file keyring"`
	KeyringUser  string           `json:"keyring_user,omitempty"`

	// NoEnv disables the SYSTEM_ACCESSTOKEN short-circuit.
	NoEnv bool `json:"no_env"`

	// NpmrcFile is the project .npmrc declaring the registries to authenticate.
	// When empty, .npmrc in the working directory is used if it exists.
	NpmrcFile string `json:"npmrc,omitempty"`

	// UserNpmrcFile receives the registry credentials. When empty,
	// $NPM_CONFIG_USERCONFIG then ~/.npmrc is used.
	UserNpmrcFile string `json:"user_npmrc,omitempty"`
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
	if c.TokenStorage == "" {
		c.TokenStorage = DefaultConfigTokenStorage
	}
	if c.ConfigFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("config path required (auto-detect failed: %w)", err)
		}
		c.ConfigFile = filepath.Join(wd, DefaultConfigSettingsFile)
	}

	// Dynamic defaults based on storage type
	switch c.TokenStorage {
	case TokenStorageTypeKeyring:
		if c.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("keyring_user required (auto-detect failed: %w)", err)
			}
			c.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeFile:
		// token file path depends on the settings file, resolved in New
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.TokenStorage == TokenStorageTypeKeyring && c.KeyringUser == "" {
		return errors.New("keyring_user required for keyring storage")
	}

	return nil
}
