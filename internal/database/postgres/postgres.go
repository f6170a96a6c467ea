package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"impact-service/internal/config"
	"impact-service/internal/database/schema"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func dsn(cfg config.PostgresConfig, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, dbname)
}

// ensureDatabase creates cfg.DBname through the maintenance database when
// it is missing.
func ensureDatabase(ctx context.Context, cfg config.PostgresConfig) error {
	admin, err := sqlx.ConnectContext(ctx, "postgres", dsn(cfg, "postgres"))
	if err != nil {
		return fmt.Errorf("failed to connect to maintenance database: %w", err)
	}
	defer admin.Close()

	var exists bool
	if err := admin.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, cfg.DBname); err != nil {
		return fmt.Errorf("failed to check database %s: %w", cfg.DBname, err)
	}
	if exists {
		return nil
	}
	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(cfg.DBname)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", cfg.DBname, err)
	}
	slog.Info("database created", "dbname", cfg.DBname)
	return nil
}

// ConnectAndCreateDB connects to cfg.DBname, creating it first when needed,
// and applies the schema.
func ConnectAndCreateDB(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	slog.Info("connecting to PostgreSQL", "host", cfg.Host, "port", cfg.Port, "dbname", cfg.DBname)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := ensureDatabase(ctx, cfg); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn(cfg, cfg.DBname))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DBname, err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := schema.Apply(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ConnectWithRetry keeps calling ConnectAndCreateDB every wait until it
// succeeds or ctx ends.
func ConnectWithRetry(ctx context.Context, cfg config.PostgresConfig, wait time.Duration) (*sqlx.DB, error) {
	for attempt := 1; ; attempt++ {
		db, err := ConnectAndCreateDB(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				slog.Info("database connection recovered", "attempt", attempt)
			}
			return db, nil
		}
		slog.Error("database connection failed", "attempt", attempt, "retry_in", wait, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to postgres: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}
