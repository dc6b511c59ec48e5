// Package maintenance provides bulk cleanup and integrity checks over the
// document store.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beekhof/crm-records/internal/store"
)

const (
	// DefaultWorkers bounds the number of concurrent deletions.
	DefaultWorkers = 8
	// DefaultRetentionDays is the age after which CleanupOldRecords deletes.
	DefaultRetentionDays = 30
)

var (
	// OldRecordCollections are the collections trimmed by CleanupOldRecords.
	OldRecordCollections = []string{store.Events, store.Notifications, store.ActivityLogs}
	// IntegrityCollections are the collections scanned by ValidateDataIntegrity.
	IntegrityCollections = []string{store.Clients, store.Events, store.Notifications}
)

// ErrInvalidArgument is returned for unusable parameters.
var ErrInvalidArgument = errors.New("invalid argument")

// Cleaner runs maintenance operations against a store.
type Cleaner struct {
	store   store.Store
	workers int
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithWorkers sets the deletion concurrency. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(c *Cleaner) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithClock overrides the reference time for age-based cleanup.
func WithClock(now func() time.Time) Option {
	return func(c *Cleaner) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleaner) { c.logger = logger }
}

// NewCleaner creates a Cleaner over s.
func NewCleaner(s store.Store, opts ...Option) *Cleaner {
	c := &Cleaner{
		store:   s,
		workers: DefaultWorkers,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CleanupOldRecords deletes documents in OldRecordCollections whose
// createdAt precedes now minus daysOld days. It returns the number of
// deleted documents.
func (c *Cleaner) CleanupOldRecords(ctx context.Context, daysOld int) (int, error) {
	if daysOld < 0 {
		return 0, fmt.Errorf("%w: daysOld must not be negative, got %d", ErrInvalidArgument, daysOld)
	}
	cutoff := c.now().AddDate(0, 0, -daysOld)

	var targets []target
	for _, collection := range OldRecordCollections {
		recs, err := c.store.Query(ctx, collection, store.Where("createdAt", store.Less, cutoff))
		if err != nil {
			return 0, c.fail("cleanup old records", collection, err)
		}
		targets = appendTargets(targets, collection, recs)
	}

	deleted, err := c.deleteAll(ctx, targets)
	if err != nil {
		return deleted, c.fail("cleanup old records", "", err)
	}
	c.logger.Info("old records removed", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	return deleted, nil
}

// CleanupOrphanedRecords deletes events whose clientId is set but names no
// existing client.
func (c *Cleaner) CleanupOrphanedRecords(ctx context.Context) (int, error) {
	events, err := c.store.Query(ctx, store.Events)
	if err != nil {
		return 0, c.fail("cleanup orphans", store.Events, err)
	}
	clients, err := c.store.Query(ctx, store.Clients)
	if err != nil {
		return 0, c.fail("cleanup orphans", store.Clients, err)
	}

	known := make(map[string]struct{}, len(clients))
	for _, rec := range clients {
		known[rec.ID] = struct{}{}
	}

	var targets []target
	for _, rec := range events {
		clientID, _ := rec.Data["clientId"].(string)
		if clientID == "" {
			continue
		}
		if _, ok := known[clientID]; !ok {
			targets = append(targets, target{collection: store.Events, id: rec.ID})
		}
	}

	deleted, err := c.deleteAll(ctx, targets)
	if err != nil {
		return deleted, c.fail("cleanup orphans", store.Events, err)
	}
	c.logger.Info("orphaned events removed", "deleted", deleted)
	return deleted, nil
}

// CleanupDuplicates groups the collection's documents by the value of field
// and keeps only the most recently created document of each group. Documents
// without the field are left alone. On a createdAt tie the first document
// returned by the store is kept.
func (c *Cleaner) CleanupDuplicates(ctx context.Context, collection, field string) (int, error) {
	if collection == "" || field == "" {
		return 0, fmt.Errorf("%w: collection and field are required", ErrInvalidArgument)
	}
	recs, err := c.store.Query(ctx, collection)
	if err != nil {
		return 0, c.fail("cleanup duplicates", collection, err)
	}

	type group struct {
		keep    store.Record
		created time.Time
		others  []string
	}
	groups := make(map[string]*group)
	var order []string
	for _, rec := range recs {
		value, ok := rec.Data[field]
		if !ok || value == nil {
			continue
		}
		key := fmt.Sprintf("%T:%v", value, value)
		created, _ := store.TimeValue(rec.Data["createdAt"])

		g, ok := groups[key]
		if !ok {
			groups[key] = &group{keep: rec, created: created}
			order = append(order, key)
			continue
		}
		if created.After(g.created) {
			g.others = append(g.others, g.keep.ID)
			g.keep, g.created = rec, created
		} else {
			g.others = append(g.others, rec.ID)
		}
	}

	var targets []target
	for _, key := range order {
		for _, id := range groups[key].others {
			targets = append(targets, target{collection: collection, id: id})
		}
	}

	deleted, err := c.deleteAll(ctx, targets)
	if err != nil {
		return deleted, c.fail("cleanup duplicates", collection, err)
	}
	c.logger.Info("duplicates removed", "collection", collection, "field", field, "deleted", deleted)
	return deleted, nil
}

// DeleteCollection removes every document of a collection.
func (c *Cleaner) DeleteCollection(ctx context.Context, collection string) (int, error) {
	return c.DeleteCollections(ctx, collection)
}

// DeleteCollections removes every document of each named collection.
func (c *Cleaner) DeleteCollections(ctx context.Context, collections ...string) (int, error) {
	var targets []target
	for _, collection := range collections {
		if collection == "" {
			return 0, fmt.Errorf("%w: empty collection name", ErrInvalidArgument)
		}
		recs, err := c.store.Query(ctx, collection)
		if err != nil {
			return 0, c.fail("delete collection", collection, err)
		}
		targets = appendTargets(targets, collection, recs)
	}

	deleted, err := c.deleteAll(ctx, targets)
	if err != nil {
		return deleted, c.fail("delete collection", "", err)
	}
	c.logger.Info("collections deleted", "collections", collections, "deleted", deleted)
	return deleted, nil
}

func (c *Cleaner) fail(op, collection string, err error) error {
	c.logger.Error("maintenance failed", "op", op, "collection", collection, "error", err)
	if collection == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s %s: %w", op, collection, err)
}
