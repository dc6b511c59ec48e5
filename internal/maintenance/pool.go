package maintenance

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/beekhof/crm-records/internal/store"
)

type target struct {
	collection string
	id         string
}

func appendTargets(targets []target, collection string, recs []store.Record) []target {
	for _, rec := range recs {
		targets = append(targets, target{collection: collection, id: rec.ID})
	}
	return targets
}

// deleteAll deletes targets on at most c.workers goroutines. The first
// failure cancels the remaining deletions and is returned as is; the count
// covers the deletions that completed.
func (c *Cleaner) deleteAll(ctx context.Context, targets []target) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}

	var deleted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := c.store.Delete(gctx, t.collection, t.id); err != nil {
				return err
			}
			deleted.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(deleted.Load()), err
}
