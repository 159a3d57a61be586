package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoliathLabs/applica/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Session token utilities",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Verify a session token with the configured secret and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer := auth.NewTokenIssuer(cfg.JWT.Secret, nil)
		claims, err := issuer.Verify(args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(claims, "", "  ")
		if err != nil {
			return fmt.Errorf("encode claims: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		fmt.Fprintf(cmd.OutOrStdout(), "expires in %s\n", time.Until(claims.Expires()).Round(time.Second))
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenInspectCmd)
}
