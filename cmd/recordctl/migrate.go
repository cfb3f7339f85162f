package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the contacts and users tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("schema applied", zap.String("driver", database.Driver))
		return nil
	},
}
