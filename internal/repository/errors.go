package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// isUniqueViolation recognises unique-index failures from both supported
// drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	// modernc sqlite reports constraint failures only through the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
