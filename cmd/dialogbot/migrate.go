package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dialog-bot/internal/storage"
	"dialog-bot/internal/storage/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDatabase(func(ctx context.Context, db *sql.DB, log *zap.Logger) error {
			return migrations.Up(ctx, db, log)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: withDatabase(func(ctx context.Context, db *sql.DB, log *zap.Logger) error {
			return migrations.Down(ctx, db, log)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDatabase(func(ctx context.Context, db *sql.DB, _ *zap.Logger) error {
			return migrations.Status(ctx, db)
		}),
	})
	return cmd
}

func withDatabase(fn func(ctx context.Context, db *sql.DB, log *zap.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, zapLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer zapLogger.Sync()

		db, err := storage.ConnectPostgres(cmd.Context(), cfg.Database.Postgres(), zapLogger)
		if err != nil {
			zapLogger.Error("Failed to connect to PostgreSQL", zap.Error(err))
			return err
		}
		defer db.Close()

		if err := fn(cmd.Context(), db.DB, zapLogger); err != nil {
			zapLogger.Error("Migration command failed", zap.String("command", cmd.Name()), zap.Error(err))
			return err
		}
		return nil
	}
}
