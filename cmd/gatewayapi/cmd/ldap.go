package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoliathLabs/applica/internal/directory"
	"github.com/GoliathLabs/applica/internal/logging"
)

var ldapCmd = &cobra.Command{
	Use:   "ldap",
	Short: "Directory diagnostics",
}

var checkUser string

var ldapCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Bind as the admin identity and optionally look up a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.SetDefault(logging.New(os.Stderr, cfg.Debug))

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		client := directory.NewClient(cfg.LDAP)

		sess, err := client.BindAsAdmin(ctx)
		if err != nil {
			return fmt.Errorf("admin bind against %s failed: %w", cfg.LDAP.URL, err)
		}
		defer client.Release(ctx, sess)
		fmt.Fprintf(cmd.OutOrStdout(), "admin bind OK (%s)\n", cfg.LDAP.URL)

		if checkUser == "" {
			return nil
		}

		user, err := client.FindUserByName(ctx, sess, checkUser)
		if err != nil {
			return fmt.Errorf("user search failed: %w", err)
		}
		if user == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "user %q not found under %s\n", checkUser, cfg.LDAP.PeopleDN())
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %q: dn=%s cn=%s\n", checkUser, user.DN, user.CommonName)

		member, err := client.IsMember(ctx, sess, cfg.LDAP.LeaderGroupDN, checkUser)
		if err != nil {
			return fmt.Errorf("membership lookup failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "leader group member: %t\n", member)
		return nil
	},
}

func init() {
	ldapCheckCmd.Flags().StringVar(&checkUser, "user", "", "Username to look up after the admin bind")
	ldapCmd.AddCommand(ldapCheckCmd)
}
