// Package store defines the document store abstraction used by the record
// services, along with an in-memory engine and a SQLite engine.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnsupportedQuery is returned when a query uses range filters on more than one field.
	ErrUnsupportedQuery = errors.New("unsupported query")
)

// Collection names used by the dashboard.
const (
	Clients       = "clients"
	Events        = "events"
	Notifications = "notifications"
	ActivityLogs  = "activityLogs"
	Settings      = "settings"
)

// Document is a schemaless key/value map stored under an id in a collection.
type Document map[string]any

// Record is a document together with its store-assigned id.
type Record struct {
	ID   string
	Data Document
}

// Op is a comparison operator usable in a Filter.
type Op string

const (
	Equal        Op = "=="
	Less         Op = "<"
	LessEqual    Op = "<="
	Greater      Op = ">"
	GreaterEqual Op = ">="
)

// Filter constrains a single field of a document.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Store is the document database contract. Every service receives one at
// construction; both engines in this package implement it.
type Store interface {
	// Add stores doc under a new store-assigned id and returns the id.
	Add(ctx context.Context, collection string, doc Document) (string, error)
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Put creates or replaces the document stored under id.
	Put(ctx context.Context, collection, id string, doc Document) error
	// Update merges fields into an existing document. It returns ErrNotFound
	// if the document does not exist.
	Update(ctx context.Context, collection, id string, fields Document) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns all documents in the collection matching every filter.
	// Result order is unspecified.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Record, error)
	// Close releases resources held by the engine.
	Close() error
}

// validateFilters enforces the query model: any number of equality filters
// and range filters on at most one field.
func validateFilters(filters []Filter) error {
	rangeField := ""
	for _, f := range filters {
		switch f.Op {
		case Equal:
		case Less, LessEqual, Greater, GreaterEqual:
			if rangeField != "" && rangeField != f.Field {
				return fmt.Errorf("%w: range filters on %q and %q", ErrUnsupportedQuery, rangeField, f.Field)
			}
			rangeField = f.Field
		default:
			return fmt.Errorf("%w: operator %q", ErrUnsupportedQuery, f.Op)
		}
	}
	return nil
}
