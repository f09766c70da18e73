package server

import (
	"database/sql"
	"errors"
)

// isEmptyResult reports whether err only means the probe query found no rows, which is
// fine for a readiness check that cares about the table existing.
func isEmptyResult(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
