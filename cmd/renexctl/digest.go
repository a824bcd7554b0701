package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/renex/internal/email"
	"github.com/dukerupert/renex/internal/model"
)

func (c *cli) digestCmd() *cobra.Command {
	var month, subject string
	var send bool

	cmd := &cobra.Command{
		Use:   "digest <file.md>",
		Short: "Preview or send the monthly digest",
		Long: "Render a Markdown file as the monthly digest. Without --send the HTML is\n" +
			"printed for review; with --send it is emailed to every subscriber.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read digest: %w", err)
			}

			d := model.Digest{Subject: subject, Markdown: string(body)}
			if month != "" {
				d.Month, err = time.Parse("2006-01", month)
				if err != nil {
					return fmt.Errorf("invalid --month %q, want YYYY-MM", month)
				}
			}

			if !send {
				html, err := email.NewRenderer(c.app.Config.BaseURL).DigestHTML(d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Subject: %s\n", email.DigestSubject(d))
				_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
				return err
			}

			report, err := c.app.Newsletter.SendDigest(cmd.Context(), d)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	f := cmd.Flags()
	f.StringVar(&month, "month", time.Now().Format("2006-01"), "digest month as YYYY-MM")
	f.StringVar(&subject, "subject", "", "subject line (default derived from the month)")
	f.BoolVar(&send, "send", false, "email the digest instead of printing it")
	return cmd
}
