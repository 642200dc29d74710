package main

import (
	"log/slog"

	"github.com/ecolearn/ecolearn/internal/config"
	"github.com/ecolearn/ecolearn/internal/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Run database migrations for the postgres storage backend and session store.",
	Args:        cobra.NoArgs,
	Annotations: structuredLog(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRequireDB()
		if err != nil {
			return err
		}

		applied, err := storage.Migrate(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if !applied {
			slog.Info("no changes to apply")
			return nil
		}

		slog.Info("migrations applied successfully")
		return nil
	},
}
