package schema

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// Statements splits the embedded schema into executable statements,
// dropping comment-only fragments.
func Statements() []string {
	var out []string
	for _, raw := range strings.Split(schemaSQL, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
	}
	return out
}

// Apply runs every schema statement. Statements are idempotent so Apply is
// safe on an existing database.
func Apply(ctx context.Context, db *sqlx.DB) error {
	statements := Statements()
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	slog.Info("schema applied", "driver", db.DriverName(), "statements", len(statements))
	return nil
}
