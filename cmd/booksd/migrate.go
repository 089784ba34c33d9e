package main

import (
	"fmt"

	"github.com/bookstore/services/books/internal/config"
	"github.com/bookstore/services/books/internal/db"
	"github.com/bookstore/services/books/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the books schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.ServiceName, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			database, err := db.Connect(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer database.Close()

			if err := db.RunMigrations(database); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}

			log.Info("Migrations applied", zap.String("database", redactURL(cfg.DatabaseURL)))
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
