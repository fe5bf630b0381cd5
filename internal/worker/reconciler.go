package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	"github.com/Pesokrava/review_engine/internal/pkg/metrics"
)

// Recomputer re-derives a product's rating aggregate
type Recomputer interface {
	Recompute(ctx context.Context, productID uuid.UUID) (domain.RatingSummary, error)
}

// ReconcilerConfig controls the reconciliation sweep
type ReconcilerConfig struct {
	Schedule    string
	BatchSize   int
	Concurrency int
}

// Reconciler periodically repairs products whose stored aggregate drifted from their approved reviews.
// It bounds the staleness left behind by lost events or crashes between a write and its recompute.
type Reconciler struct {
	store  domain.AggregateStore
	engine Recomputer
	cfg    ReconcilerConfig
	logger *logger.Logger

	cron    *cron.Cron
	running sync.Mutex
}

// NewReconciler creates a new reconciler
func NewReconciler(store domain.AggregateStore, engine Recomputer, cfg ReconcilerConfig, log *logger.Logger) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &Reconciler{
		store:  store,
		engine: engine,
		cfg:    cfg,
		logger: log,
	}
}

// Start schedules the sweep; ctx bounds every sweep started by the schedule
func (r *Reconciler) Start(ctx context.Context) error {
	c := cron.New()

	_, err := c.AddFunc(r.cfg.Schedule, func() {
		if _, err := r.Sweep(ctx); err != nil {
			r.logger.Error("Rating reconciliation sweep failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.cfg.Schedule, err)
	}

	r.cron = c
	c.Start()

	r.logger.WithFields(map[string]any{
		"schedule":    r.cfg.Schedule,
		"batch_size":  r.cfg.BatchSize,
		"concurrency": r.cfg.Concurrency,
	}).Info("Rating reconciler started")

	return nil
}

// Stop stops the schedule and waits for a running sweep
func (r *Reconciler) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}

	stopped := r.cron.Stop()

	select {
	case <-stopped.Done():
		r.logger.Info("Rating reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep recomputes one batch of stale products and returns how many were repaired.
// Overlapping sweeps are skipped.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	if !r.running.TryLock() {
		r.logger.Debug("Previous reconciliation sweep still running, skipping")
		metrics.ReconcileSweeps.WithLabelValues("skipped").Inc()
		return 0, nil
	}
	defer r.running.Unlock()

	ids, err := r.store.ListStaleProducts(ctx, r.cfg.BatchSize)
	if err != nil {
		metrics.ReconcileSweeps.WithLabelValues("failure").Inc()
		return 0, fmt.Errorf("failed to list stale products: %w", err)
	}

	if len(ids) == 0 {
		metrics.ReconcileSweeps.WithLabelValues("clean").Inc()
		return 0, nil
	}

	var repaired atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := r.engine.Recompute(gctx, id); err != nil {
				// Keep sweeping; this product is picked up again next run
				r.logger.WithFields(map[string]any{
					"product_id": id.String(),
				}).Error("Failed to repair product rating", err)
				return nil
			}
			repaired.Add(1)
			metrics.ReconcileRepaired.Inc()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		metrics.ReconcileSweeps.WithLabelValues("failure").Inc()
		return int(repaired.Load()), err
	}

	metrics.ReconcileSweeps.WithLabelValues("repaired").Inc()

	r.logger.WithFields(map[string]any{
		"stale":    len(ids),
		"repaired": repaired.Load(),
	}).Info("Rating reconciliation sweep finished")

	return int(repaired.Load()), nil
}
