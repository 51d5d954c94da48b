package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/florianilch/vsts-npm-auth/internal/configstore"
	"github.com/florianilch/vsts-npm-auth/internal/npmrc"
	"github.com/florianilch/vsts-npm-auth/internal/tokensource"
	"github.com/florianilch/vsts-npm-auth/internal/tokenstore"
)

// App wires the settings file, the refresh token storage and the token client.
type App struct {
	cfg      *Config
	settings *configstore.Store
	tokens   tokenstore.TokenStore
	client   *tokensource.Client
}

// New creates a new App instance. Reads the settings file to resolve the
// token file path but performs no network I/O.
func New(cfg *Config, opts ...tokensource.Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	settings := configstore.New(cfg.ConfigFile)

	tokens, err := newTokenStore(cfg, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	if !cfg.NoEnv {
		opts = append([]tokensource.Option{tokensource.WithEnvResolver(tokensource.NewEnvResolver())}, opts...)
	}
	client, err := tokensource.New(settings, tokens, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create token client: %w", err)
	}

	return &App{
		cfg:      cfg,
		settings: settings,
		tokens:   tokens,
		client:   client,
	}, nil
}

// Settings returns the settings store.
func (a *App) Settings() *configstore.Store {
	return a.settings
}

// Tokens returns the refresh token storage.
func (a *App) Tokens() tokenstore.TokenStore {
	return a.tokens
}

// AccessToken obtains an access token for registry requests.
func (a *App) AccessToken(ctx context.Context) (string, error) {
	slog.DebugContext(ctx, "obtaining access token", "settings", a.settings.Path(), "token_storage", a.cfg.TokenStorage)
	return a.client.AccessToken(ctx)
}

// Registries returns the Azure DevOps feeds declared in the project .npmrc.
// Without an explicit path, a missing .npmrc in the working directory yields none.
func (a *App) Registries() ([]npmrc.Registry, error) {
	path := a.cfg.NpmrcFile
	explicit := path != ""
	if !explicit {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("locating %s: %w", npmrc.FileName, err)
		}
		path = filepath.Join(wd, npmrc.FileName)
	}

	registries, err := npmrc.Registries(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading project %s: %w", npmrc.FileName, err)
	}

	feeds := npmrc.AzureDevOps(registries)
	if explicit && len(feeds) == 0 {
		return nil, fmt.Errorf("no Azure DevOps registries declared in %s", path)
	}
	slog.Debug("found registries", "npmrc", path, "total", len(registries), "azure_devops", len(feeds))
	return feeds, nil
}

// Authenticate stores token for registries in the user .npmrc and returns its path.
func (a *App) Authenticate(registries []npmrc.Registry, token string) (string, error) {
	path := a.cfg.UserNpmrcFile
	if path == "" {
		var err error
		if path, err = npmrc.UserConfigPath(); err != nil {
			return "", err
		}
	}

	if err := npmrc.SetAuthToken(path, registries, token); err != nil {
		return "", fmt.Errorf("updating user %s: %w", npmrc.FileName, err)
	}
	return path, nil
}

// newTokenStore creates the refresh token storage selected by the configuration.
func newTokenStore(cfg *Config, settings *configstore.Store) (tokenstore.TokenStore, error) {
	switch cfg.TokenStorage {
	case TokenStorageTypeFile:
		path, err := resolveTokenFile(cfg, settings)
		if err != nil {
			return nil, err
		}
		return tokenstore.NewFileStore(path)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(DefaultConfigKeyringService, cfg.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.TokenStorage)
	}
}

// resolveTokenFile picks the token file path: explicit override, then the
// tokenfile setting, then the default file in the working directory.
func resolveTokenFile(cfg *Config, settings *configstore.Store) (string, error) {
	if cfg.TokenFile != "" {
		return cfg.TokenFile, nil
	}

	values, err := settings.Get()
	if err != nil {
		return "", fmt.Errorf("reading settings: %w", err)
	}
	if path := values[configstore.KeyTokenFile]; path != "" {
		return path, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("tokenfile required (auto-detect failed: %w)", err)
	}
	return filepath.Join(wd, DefaultConfigTokenFile), nil
}
