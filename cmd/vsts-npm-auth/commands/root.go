package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/vsts-npm-auth/internal/app"
	"github.com/florianilch/vsts-npm-auth/internal/npmrc"
	"github.com/florianilch/vsts-npm-auth/internal/observability"
	"github.com/florianilch/vsts-npm-auth/internal/tokensource"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	defer func() {
		if err := observability.Shutdown(context.WithoutCancel(ctx)); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "flushing logs:", err)
		}
	}()
	return run(ctx, newRootCommand(), args)
}

func run(ctx context.Context, cmd *cli.Command, args []string) error {
	err := cmd.Run(ctx, args)
	if err != nil && cmd.Bool("stack") {
		printErrorChain(cmd.ErrWriter, err)
	}
	return err
}

// printErrorChain writes err and every error it wraps, outermost first.
func printErrorChain(w io.Writer, err error) {
	for depth := 0; err != nil; depth++ {
		_, _ = fmt.Fprintf(w, "%s%T: %v\n", strings.Repeat("  ", depth), err, err)
		err = errors.Unwrap(err)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "vsts-npm-auth",
		Usage: "Azure DevOps package registry authentication",
		Description: "Exchanges the stored refresh token for a short-lived access token and stores it in the\n" +
			"user .npmrc for every Azure DevOps registry declared in the project .npmrc.\n" +
			"Without a project .npmrc the access token is printed instead.\n" +
			"On build agents that provide SYSTEM_ACCESSTOKEN, that token is used instead.",
		Reader:    os.Stdin,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the settings file (default: ./" + app.DefaultConfigSettingsFile + ")",
			},
			&cli.StringFlag{
				Name:    "npmrc",
				Aliases: []string{"n"},
				Usage:   "path to the project .npmrc declaring the registries (default: ./" + npmrc.FileName + " if present)",
			},
			&cli.StringFlag{
				Name:  "user-npmrc",
				Usage: "path to the .npmrc receiving credentials (default: $" + npmrc.UserConfigEnv + ", then ~/" + npmrc.FileName + ")",
			},
			&cli.StringFlag{
				Name:  "tokenfile",
				Usage: "path to the token file (default: tokenfile setting, then ./" + app.DefaultConfigTokenFile + ")",
			},
			&cli.StringFlag{
				Name:  "token-storage",
				Usage: "refresh token storage (file|keyring)",
				Value: string(app.DefaultConfigTokenStorage),
			},
			&cli.StringFlag{
				Name:  "keyring-user",
				Usage: "keyring account for keyring storage (default: current user)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.BoolFlag{
				Name:  "no-env",
				Usage: "ignore " + tokensource.SystemAccessTokenEnv + " and always exchange the refresh token",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "do not open a browser when consent is required",
			},
			&cli.BoolFlag{
				Name:  "stack",
				Usage: "print the chain of wrapped errors on failure",
			},
		},
		Commands: []*cli.Command{
			settingsCommand(),
			tokenCommand(),
		},
		Action: runAction,
	}
}

// setup loads configuration, installs logging and creates the application.
func setup(cmd *cli.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	err = observability.Instrument(cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	return application, nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	registries, err := application.Registries()
	if err != nil {
		return err
	}

	token, err := application.AccessToken(ctx)
	if err != nil {
		var authErr *tokensource.AuthorizationError
		if errors.As(err, &authErr) && authErr.ConsentURL != "" {
			requestConsent(ctx, cmd, authErr.ConsentURL)
		}
		return err
	}

	if len(registries) == 0 {
		_, err = fmt.Fprintln(cmd.Root().Writer, token)
		return err
	}

	path, err := application.Authenticate(registries, token)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "stored registry credentials", "npmrc", path, "registries", len(registries))
	return nil
}

// requestConsent points the user at the consent page. The page hands out a
// refresh token which the user stores with `token set`.
func requestConsent(ctx context.Context, cmd *cli.Command, consentURL string) {
	root := cmd.Root()
	_, _ = fmt.Fprintf(root.ErrWriter, "Authorization required. Grant access at:\n\n  %s\n\nthen store the refresh token with `%s token set` and run again.\n\n", consentURL, root.Name)

	if cmd.Bool("no-browser") {
		return
	}
	if err := openBrowser(consentURL); err != nil {
		slog.WarnContext(ctx, "failed to open browser", "error", err)
	}
}
