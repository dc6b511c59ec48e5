// Package records provides the typed record access services for clients and
// calendar events, layered over a store.Store.
package records

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/beekhof/crm-records/internal/store"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalid is returned when a record fails validation at the service boundary.
	ErrInvalid = errors.New("invalid record")
)

// StoreError wraps a failure of the underlying document store.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapStoreErr maps store failures into the records error taxonomy.
func wrapStoreErr(op, collection, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %q: %w", collection, id, ErrNotFound)
	}
	return &StoreError{Op: op, Collection: collection, Err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func logFailure(logger *slog.Logger, op, collection, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("record not found", "op", op, "collection", collection, "id", id)
	} else {
		logger.Error("store operation failed", "op", op, "collection", collection, "id", id, "error", err)
	}
	return wrapStoreErr(op, collection, id, err)
}
