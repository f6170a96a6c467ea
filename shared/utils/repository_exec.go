package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type ExecType int

const (
	ExecInsert ExecType = iota
	ExecUpdate
	ExecDelete
)

// ErrNoRowsAffected is returned by ExecWithCheck when an update or delete
// matched nothing.
var ErrNoRowsAffected = errors.New("no rows affected")

// ExecWithCheck rebinds query for the connected driver, executes it and, for
// updates and deletes, verifies that at least one row changed.
func ExecWithCheck(ctx context.Context, db sqlx.ExtContext, query string, execType ExecType, args ...any) error {
	result, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	if execType == ExecInsert {
		return nil
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}
