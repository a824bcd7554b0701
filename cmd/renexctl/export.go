package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/renex/internal/subscription"
)

func (c *cli) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the subscriber list as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := c.app.Subscribers.Export()
			if out == "" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), data)
				return err
			}
			if err := os.WriteFile(out, []byte(data+"\n"), 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d subscribers to %s\n", c.app.Subscribers.Count(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func (c *cli) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the local subscriber count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n := c.app.Subscribers.Count()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%d (%s)\n", n, subscription.CountLabel(n))
			return err
		},
	}
}
