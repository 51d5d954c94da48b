package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/vsts-npm-auth/internal/tokensource"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "read or modify the stored refresh token",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "print the stored refresh token",
				Action: tokenGetAction,
			},
			{
				Name:      "set",
				Usage:     "store a refresh token; read from stdin when no value is given",
				ArgsUsage: "[value]",
				Action:    tokenSetAction,
			},
			{
				Name:   "delete",
				Usage:  "clear the stored refresh token",
				Flags:  []cli.Flag{yesFlag()},
				Action: tokenDeleteAction,
			},
		},
		Action: tokenGetAction,
	}
}

func tokenGetAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	token, err := application.Tokens().Read(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		_, err = fmt.Fprintln(cmd.Root().Writer, token)
	}
	return err
}

func tokenSetAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	token := cmd.Args().First()
	if token == "" {
		token, err = readSecret(cmd, "Refresh token: ")
		if err != nil {
			return fmt.Errorf("reading refresh token: %w", err)
		}
	}
	if token == "" {
		return errors.New("refresh token cannot be empty")
	}

	return tokensource.SetRefreshToken(ctx, application.Tokens(), token)
}

func tokenDeleteAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	ok, err := confirm(cmd, "Delete the stored refresh token?")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return application.Tokens().Clear(ctx)
}
