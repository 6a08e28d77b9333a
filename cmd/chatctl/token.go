package main

import (
	"fmt"
	"os"
	"time"

	"vibehive/auth"

	"github.com/spf13/cobra"
)

// newTokenCmd issues a bearer token signed with the server secret, for local setups
// where no account service hands them out.
func newTokenCmd() *cobra.Command {
	var (
		secret string
		roles  []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <participant>",
		Short: "Sign a bearer token for a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret (or AUTH_SECRET) is required")
			}
			token, err := auth.GenerateToken([]byte(secret), args[0], roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_SECRET"), "HMAC secret shared with the server")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "roles carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
