package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage encrypted subscriber backups",
	}
	cmd.AddCommand(c.backupRunCmd(), c.backupListCmd(), c.backupFetchCmd())
	return cmd
}

func (c *cli) backupRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Upload an encrypted export now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := c.app.Backups.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}
}

func (c *cli) backupListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := c.app.Backups.List(limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tSIZE\tCREATED\tKEY")
			for _, b := range backups {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", b.ID, b.Status, b.SizeBytes, b.CreatedAt.Format(time.RFC3339), b.S3Key)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of backups to show")
	return cmd
}

func (c *cli) backupFetchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fetch <id>",
		Short: "Download and decrypt a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid backup id %q", args[0])
			}
			data, err := c.app.Backups.Fetch(cmd.Context(), id)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o600)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}
