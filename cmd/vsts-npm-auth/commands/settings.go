package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/vsts-npm-auth/internal/configstore"
)

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "read or modify the settings file",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print a setting, or all settings",
				ArgsUsage: "[key]",
				Action:    configGetAction,
			},
			{
				Name:      "set",
				Usage:     "set a setting",
				ArgsUsage: "<key> <value>",
				Action:    configSetAction,
			},
			{
				Name:      "delete",
				Usage:     "delete a setting; without a key, clear the whole settings file",
				ArgsUsage: "[key]",
				Flags:     []cli.Flag{yesFlag()},
				Action:    configDeleteAction,
			},
		},
		Action: configGetAction,
	}
}

func configGetAction(_ context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	settings := application.Settings()

	key := cmd.Args().First()
	if key != "" && !settings.IsKeyValid(key) {
		return fmt.Errorf("can't get %q from config: %w", key, &configstore.InvalidKeyError{Key: key})
	}

	values, err := settings.Get()
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if key != "" {
		if value := values[key]; value != "" {
			_, err = fmt.Fprintln(w, value)
		}
		return err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

func configSetAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("usage: config set <key> <value>")
	}
	key, value := cmd.Args().Get(0), cmd.Args().Get(1)

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	if err := application.Settings().Set(key, value); err != nil {
		return fmt.Errorf("can't set %q on config: %w", key, err)
	}
	return nil
}

func configDeleteAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}
	settings := application.Settings()

	if key := cmd.Args().First(); key != "" {
		if err := settings.Delete(key); err != nil {
			return fmt.Errorf("can't delete %q from config: %w", key, err)
		}
		return nil
	}

	ok, err := confirm(cmd, fmt.Sprintf("Delete all settings in %s?", settings.Path()))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return settings.Clear()
}
