package repository

import (
	"errors"

	"github.com/bdt-io/bdt/internal/database"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a row changed since it was read.
	ErrConflict = errors.New("conflicting update")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("already exists")
	// ErrInUse is returned when a row is still referenced.
	ErrInUse = errors.New("still referenced")
)

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return ErrDuplicate
	case database.IsForeignKeyViolation(err):
		return ErrInUse
	}
	return err
}
