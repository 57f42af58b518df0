package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the account profile",
	}

	cmd.AddCommand(newProfileUpdateCmd(), newProfileDeleteCmd())

	return cmd
}

func newProfileUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <new-username>",
		Short: "Change the username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			msg, err := cc.App().Account.UpdateUserInfo(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("updating profile: %w", err)
			}

			cc.Statusf("%s\n", msg)

			return nil
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Permanently delete the account",
		Long: `Permanently delete the account and all of its documents on the server.
This cannot be undone. Pass --yes to confirm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete the account without --yes")
			}

			cc := mustCLIContext(cmd.Context())

			msg, err := cc.App().Account.DeleteAccount(cmd.Context())
			if err != nil {
				return fmt.Errorf("deleting account: %w", err)
			}

			cc.Logger.Info("account deleted")
			cc.Statusf("%s\n", msg)

			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm account deletion")

	return cmd
}
