// Package migrations embeds the PostgreSQL schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed *.sql
var files embed.FS

func prepare() error {
	goose.SetBaseFS(files)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

func Up(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	const operation = "migrations.Up"

	logger.Info("Running database migrations...")
	if err := prepare(); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", operation, err)
	}
	logger.Info("Database migrations completed successfully")
	return nil
}

func Down(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	const operation = "migrations.Down"

	logger.Info("Rolling back last migration...")
	if err := prepare(); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if err := goose.DownContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: failed to rollback migration: %w", operation, err)
	}
	logger.Info("Migration rollback completed")
	return nil
}

func Status(ctx context.Context, db *sql.DB) error {
	if err := prepare(); err != nil {
		return fmt.Errorf("migrations.Status: %w", err)
	}
	if err := goose.StatusContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrations.Status: failed to check migration status: %w", err)
	}
	return nil
}
