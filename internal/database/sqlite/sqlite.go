package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"impact-service/internal/database/schema"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Open connects to a SQLite database file (or ":memory:") and applies the
// schema. Used for local runs, the CLI and repository tests.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	sqlx.BindDriver(driverName, sqlx.QUESTION)

	dsn := path
	memory := path == "" || path == ":memory:"
	if memory {
		dsn = ":memory:"
	} else if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if memory {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := schema.Apply(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("sqlite database ready", "path", dsn)
	return db, nil
}
