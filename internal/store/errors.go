package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

// handleNotFound translates sql.ErrNoRows into the domain sentinel,
// matching the teacher store's pgx.ErrNoRows translation.
func handleNotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return wrapErr(err, what)
}

// wrapErr recognizes SQLite constraint failures and maps them onto the
// validation taxonomy; anything else is an internal error.
func wrapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "CHECK constraint failed") {
		return fmt.Errorf("%s: %w: %s", what, domain.ErrValidation, msg)
	}
	return fmt.Errorf("%s: %w", what, err)
}
