package repository

import (
	"database/sql"
	"errors"

	customError "github.com/segyhp/reconciliation-engine/pkg/errors"

	"github.com/lib/pq"
)

// Postgres error codes a caller may retry the whole unit of work on.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// storageError maps driver errors onto the repository contract: no rows
// becomes ErrNotFound and lock contention is marked transient.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return errors.Join(customError.ErrTransient, err)
		}
	}
	return err
}
