package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/vsts-npm-auth/internal/app"
)

// envPrefix marks the environment variables that mirror the global flags,
// e.g. VSTS_NPM_AUTH_NPMRC for --npmrc.
const envPrefix = "VSTS_NPM_AUTH_"

// loadConfig assembles the process configuration. Flags override the
// environment; whatever neither sets falls back to app defaults. Tool settings
// such as tokenEndpoint are not part of it, they live in the settings file.
func loadConfig(cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return configKey(strings.TrimPrefix(key, envPrefix)), value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(flagValues(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// flagValues collects the flags given on the command line, root flags
// included, keyed like app.Config's json tags (--user-npmrc → user_npmrc).
func flagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)
	for _, name := range cmd.FlagNames() {
		// defaults must not shadow environment values
		if !cmd.IsSet(name) {
			continue
		}
		if value := cmd.Value(name); value != nil {
			values[configKey(name)] = value
		}
	}
	return values
}

// configKey maps a flag or environment variable name to its config key.
func configKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}
