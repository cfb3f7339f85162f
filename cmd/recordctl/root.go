package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nekogravitycat/record-console/internal/app"
	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/config"
	"github.com/nekogravitycat/record-console/internal/logging"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "recordctl",
	Short:         "Role-gated record console for contacts and user accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = logging.New(cfg.IsProduction, cfg.LogLevel)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

// openDatabase connects to the configured store or logs why it could not.
func openDatabase(ctx context.Context) (*app.Database, error) {
	database, err := app.OpenDatabase(ctx, cfg.DBDriver, cfg.DBDSN, catalog.Default())
	if err != nil {
		logger.Error("failed to connect to db", zap.String("driver", cfg.DBDriver), zap.Error(err))
		return nil, err
	}
	return database, nil
}

func newContainer(database *app.Database) *app.Container {
	return app.NewContainer(app.Config{
		IsProduction:      cfg.IsProduction,
		ProdOrigins:       cfg.ProdOrigins,
		Store:             database.Store,
		Dialect:           database.Dialect,
		JWTSecret:         cfg.JWTSecret,
		JWTTTL:            cfg.JWTAccessTokenTTL,
		BcryptCost:        cfg.BcryptCost,
		UndoMaxDepth:      cfg.UndoMaxDepth,
		MinPasswordLength: cfg.MinPasswordLength,
		Logger:            logger,
	})
}
