package cli

import (
	"fmt"

	"github.com/chxlky/boardsync/database"
	"github.com/chxlky/boardsync/internal/store"
	"github.com/spf13/cobra"
)

// NewUserCommand groups user administration. Users are created here; the API
// only trusts the ids it is handed.
func NewUserCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCommand(opts))
	return cmd
}

func newUserAddCommand(opts *RootOptions) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:          "add",
		Short:        "Create a user and print its id",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(opts.Config.Database, nil)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(db); err != nil {
				return err
			}

			if name == "" {
				name = email
			}
			u, err := store.New(db).CreateUser(cmd.Context(), email, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
