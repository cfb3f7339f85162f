package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nekogravitycat/record-console/internal/user"
)

var bootstrapInput user.NewAccount

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap-manager",
	Short: "Create the first Manager account",
	Long: `Creates a Manager account when none exists yet, so that further accounts
can be created through the API. The password is read from --password or the
RECORDCTL_MANAGER_PASSWORD environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bootstrapInput.Password == "" {
			bootstrapInput.Password = os.Getenv("RECORDCTL_MANAGER_PASSWORD")
		}

		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		container := newContainer(database)
		a, err := container.UserService.BootstrapManager(cmd.Context(), bootstrapInput)
		if errors.Is(err, user.ErrManagerExists) {
			fmt.Fprintln(cmd.OutOrStdout(), "a manager account already exists, nothing to do")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created manager %s\n", a)
		return nil
	},
}

func init() {
	f := bootstrapCmd.Flags()
	f.StringVar(&bootstrapInput.Username, "username", "", "login name (required)")
	f.StringVar(&bootstrapInput.Name, "name", "", "given name (required)")
	f.StringVar(&bootstrapInput.Surname, "surname", "", "family name (required)")
	f.StringVar(&bootstrapInput.Password, "password", "", "initial password")
	_ = bootstrapCmd.MarkFlagRequired("username")
	_ = bootstrapCmd.MarkFlagRequired("name")
	_ = bootstrapCmd.MarkFlagRequired("surname")
}
