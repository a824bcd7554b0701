package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/renex/internal/push"
)

func vapidKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "vapid-keys",
		Short:       "Generate a VAPID key pair for web push",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
			return err
		},
	}
}
