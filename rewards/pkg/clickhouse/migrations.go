package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pressly/goose/v3"

	"github.com/opiumfinance/lprewards/rewards"
)

const migrationsDir = "db/clickhouse/migrations"

// MigrationConfig holds the configuration for running migrations
type MigrationConfig = ClientConfig

// slogGooseLogger adapts slog.Logger to goose.Logger interface
type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// RunMigrations executes all SQL migration files using goose (alias for Up)
func RunMigrations(ctx context.Context, log *slog.Logger, cfg MigrationConfig) error {
	return Up(ctx, log, cfg)
}

// Up runs all pending migrations
func Up(ctx context.Context, log *slog.Logger, cfg MigrationConfig) error {
	log.Info("clickhouse: running migrations (up)", "database", cfg.Database)
	err := withGoose(log, cfg, func(db *sql.DB) error {
		return goose.UpContext(ctx, db, migrationsDir)
	})
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("clickhouse: migrations completed successfully")
	return nil
}

// Down rolls back the most recent migration
func Down(ctx context.Context, log *slog.Logger, cfg MigrationConfig) error {
	log.Info("clickhouse: rolling back migration (down)", "database", cfg.Database)
	err := withGoose(log, cfg, func(db *sql.DB) error {
		return goose.DownContext(ctx, db, migrationsDir)
	})
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	log.Info("clickhouse: migration rolled back successfully")
	return nil
}

// MigrationStatus logs the status of all migrations
func MigrationStatus(ctx context.Context, log *slog.Logger, cfg MigrationConfig) error {
	log.Info("clickhouse: checking migration status", "database", cfg.Database)
	return withGoose(log, cfg, func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, migrationsDir)
	})
}

// Version returns the current migration version
func Version(ctx context.Context, log *slog.Logger, cfg MigrationConfig) (int64, error) {
	var version int64
	err := withGoose(log, cfg, func(db *sql.DB) error {
		var err error
		version, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

func withGoose(log *slog.Logger, cfg MigrationConfig, fn func(db *sql.DB) error) error {
	db := newSQLDB(cfg)
	defer db.Close()

	goose.SetLogger(&slogGooseLogger{log: log})
	goose.SetBaseFS(rewards.ClickHouseMigrationsFS)

	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn(db)
}

// newSQLDB opens the database/sql handle goose migrates through.
func newSQLDB(cfg MigrationConfig) *sql.DB {
	return clickhouse.OpenDB(cfg.options())
}
