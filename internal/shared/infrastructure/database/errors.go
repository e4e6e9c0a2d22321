package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNoRows is the driver-neutral "not found" sentinel.
var ErrNoRows = errors.New("no rows in result set")

// IsNoRows reports whether err means a single-row lookup found nothing,
// whichever driver produced it. Repositories map it to a nil result.
func IsNoRows(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNoRows), errors.Is(err, sql.ErrNoRows):
		return true
	default:
		return errors.Is(err, pgx.ErrNoRows)
	}
}
