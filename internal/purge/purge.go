// Package purge deletes the reading history of a recipe.
package purge

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/brew-monitor/internal/metrics"
	"github.com/sweeney/brew-monitor/internal/store"
)

// DefaultConcurrency bounds in-flight deletes per collection.
const DefaultConcurrency = 16

// Result reports how a purge went.
type Result struct {
	FullySucceeded bool
	Deleted        int
	Failed         int
}

// Purger deletes both reading collections of a recipe.
type Purger struct {
	store       store.Store
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// New creates a purger. concurrency <= 0 uses DefaultConcurrency.
func New(s store.Store, concurrency int, logger *zap.Logger, m *metrics.Metrics) *Purger {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Purger{store: s, concurrency: concurrency, logger: logger, metrics: m}
}

// tally is the join state of one purge.
type tally struct {
	hasError atomic.Bool
	deleted  atomic.Int64
	failed   atomic.Int64
}

// Purge deletes every temperature and pH reading of the recipe. It returns
// only after both collections have been fully processed. A failed delete
// does not stop the others; it marks the result as not fully succeeded.
func (p *Purger) Purge(ctx context.Context, userID, recipeID string) Result {
	start := time.Now()
	var t tally

	collections := []string{
		store.TemperatureReadingsPath(userID, recipeID),
		store.PHReadingsPath(userID, recipeID),
	}

	var g errgroup.Group
	for _, collection := range collections {
		collection := collection
		g.Go(func() error {
			p.purgeCollection(ctx, collection, &t)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		FullySucceeded: !t.hasError.Load(),
		Deleted:        int(t.deleted.Load()),
		Failed:         int(t.failed.Load()),
	}
	p.metrics.PurgeFinished(time.Since(start))

	if res.FullySucceeded {
		p.logger.Info("reading history purged",
			zap.String("recipe_id", recipeID),
			zap.Int("deleted", res.Deleted),
		)
	} else {
		p.logger.Warn("reading history purged with errors",
			zap.String("recipe_id", recipeID),
			zap.Int("deleted", res.Deleted),
			zap.Int("failed", res.Failed),
		)
	}
	return res
}

// purgeCollection deletes every document of one collection. An empty
// collection returns at once.
func (p *Purger) purgeCollection(ctx context.Context, collection string, t *tally) {
	_, name, _ := store.Split(collection)

	docs, err := p.store.List(ctx, collection)
	if err != nil {
		t.hasError.Store(true)
		p.logger.Warn("failed to list readings for purge",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return
	}
	if len(docs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, doc := range docs {
		path := doc.Path
		g.Go(func() error {
			if err := p.store.Delete(ctx, path); err != nil {
				t.hasError.Store(true)
				t.failed.Add(1)
				p.metrics.PurgeDocument(name, false)
				p.logger.Warn("failed to delete reading",
					zap.String("path", path),
					zap.Error(err),
				)
				return nil
			}
			t.deleted.Add(1)
			p.metrics.PurgeDocument(name, true)
			return nil
		})
	}
	_ = g.Wait()
}
