package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dukerupert/renex/internal/app"
	"github.com/dukerupert/renex/internal/config"
	"github.com/dukerupert/renex/internal/logging"
)

// skipApp marks commands that do not need the database.
const skipApp = "skip-app"

type cli struct {
	envFile string
	app     *app.App
}

// run executes the command line in args and releases the app afterwards.
func run(args []string, stdout, stderr io.Writer) error {
	root, c := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if c.app != nil {
		c.app.Close()
	}
	return err
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:           "renexctl",
		Short:         "Administer the Renewable Energy Nexus subscriber service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipApp] == "true" {
				return nil
			}
			return c.open(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env", ".env", "optional .env file to load")

	root.AddCommand(
		c.exportCmd(),
		c.countCmd(),
		c.backupCmd(),
		c.notifyArticleCmd(),
		c.digestCmd(),
		vapidKeysCmd(),
	)
	return root, c
}

func (c *cli) open(logOut io.Writer) error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return err
	}
	logger := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
