package cmd

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/templui/docvault/internal/config"
	"github.com/templui/docvault/internal/db"
	"github.com/templui/docvault/internal/logger"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back shared schema migrations",
	}

	cmd.AddCommand(migrateStepCmd("up", "Apply all pending migrations", db.RunMigrations))
	cmd.AddCommand(migrateStepCmd("down", "Roll back the latest migration", db.MigrateDown))
	return cmd
}

func migrateStepCmd(use, short string, step func(context.Context, *sql.DB, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

			conn, err := db.Init(cfg.DBDriver, cfg.DBConnection)
			if err != nil {
				return err
			}
			defer db.Close(conn)
			return step(cmd.Context(), conn.DB, cfg.DBDriver)
		},
	}
}
