package rating

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	"github.com/Pesokrava/review_engine/internal/pkg/metrics"
)

const (
	attemptTimeout = 5 * time.Second
	maxRetryDelay  = time.Minute
)

// SummaryCache is the subset of the cache the engine keeps warm
type SummaryCache interface {
	SetRatingSummary(ctx context.Context, productID uuid.UUID, summary *domain.RatingSummary) error
	InvalidateRatingSummary(ctx context.Context, productID uuid.UUID) error
}

// Config controls retry behaviour of the engine
type Config struct {
	// MaxRetries is the number of store attempts per Recompute call
	MaxRetries int
	// InitialBackoff is the wait before the second attempt; it doubles per attempt
	InitialBackoff time.Duration
	// RetryDelay is the wait before a background retry scheduled by Trigger
	RetryDelay time.Duration
}

// Engine keeps product rating aggregates equal to a full derivation of their approved reviews.
// Recomputes for one product never overlap inside a process; the store serializes across processes.
type Engine struct {
	store  domain.AggregateStore
	cache  SummaryCache
	cfg    Config
	logger *logger.Logger

	locks *keyedMutex

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	closed  bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewEngine creates a new recomputation engine; cache may be nil
func NewEngine(store domain.AggregateStore, cache SummaryCache, cfg Config, log *logger.Logger) *Engine {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:   store,
		cache:   cache,
		cfg:     cfg,
		logger:  log,
		locks:   newKeyedMutex(),
		pending: make(map[uuid.UUID]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Recompute re-derives the product aggregate from its approved reviews and stores it.
// A product that no longer exists yields a zero summary and no error.
// Exhausted retries return a *domain.RecomputationError.
func (e *Engine) Recompute(ctx context.Context, productID uuid.UUID) (domain.RatingSummary, error) {
	unlock := e.locks.Lock(productID)
	defer unlock()

	var lastErr error
	backoff := e.cfg.InitialBackoff

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			e.logger.WithFields(map[string]any{
				"product_id": productID.String(),
				"attempt":    attempt + 1,
				"backoff_ms": backoff.Milliseconds(),
			}).Warn("Retrying rating recompute")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.RecomputeTotal.WithLabelValues("failure").Inc()
				return domain.RatingSummary{}, &domain.RecomputationError{ProductID: productID, Err: ctx.Err()}
			}

			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		start := time.Now()
		summary, err := e.store.RecomputeAggregate(attemptCtx, productID)
		metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
		cancel()

		if err == nil {
			e.storeInCache(ctx, productID, summary)
			metrics.RecomputeTotal.WithLabelValues("success").Inc()
			e.logger.WithFields(map[string]any{
				"product_id":     productID.String(),
				"average_rating": summary.AverageRating,
				"review_count":   summary.ReviewCount,
			}).Debug("Product rating recomputed")
			return *summary, nil
		}

		if errors.Is(err, domain.ErrNotFound) {
			e.dropFromCache(ctx, productID)
			metrics.RecomputeTotal.WithLabelValues("skipped").Inc()
			e.logger.WithFields(map[string]any{
				"product_id": productID.String(),
			}).Info("Product not found or deleted, skipping rating recompute")
			return domain.RatingSummary{}, nil
		}

		lastErr = err
		e.logger.WithFields(map[string]any{
			"product_id": productID.String(),
			"attempt":    attempt + 1,
		}).Error("Failed to recompute rating", err)
	}

	metrics.RecomputeTotal.WithLabelValues("failure").Inc()
	return domain.RatingSummary{}, &domain.RecomputationError{ProductID: productID, Err: lastErr}
}

// Trigger recomputes after a review mutation has committed. It never fails the caller:
// a failed recompute is logged and retried in the background until it succeeds.
func (e *Engine) Trigger(ctx context.Context, productID uuid.UUID) {
	// The triggering request may finish before the recompute does.
	ctx = context.WithoutCancel(ctx)

	if _, err := e.Recompute(ctx, productID); err != nil {
		e.logger.WithFields(map[string]any{
			"product_id": productID.String(),
		}).Error("Rating recompute failed, scheduling retry", err)
		e.scheduleRetry(productID)
	}
}

// scheduleRetry starts one background retry loop per product
func (e *Engine) scheduleRetry(productID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if _, found := e.pending[productID]; found {
		return
	}

	e.pending[productID] = struct{}{}
	metrics.PendingRetries.Inc()
	e.wg.Add(1)

	go e.retryLoop(productID)
}

func (e *Engine) retryLoop(productID uuid.UUID) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.pending, productID)
		e.mu.Unlock()
		metrics.PendingRetries.Dec()
	}()

	delay := e.cfg.RetryDelay
	for {
		select {
		case <-time.After(delay):
		case <-e.ctx.Done():
			return
		}

		_, err := e.Recompute(e.ctx, productID)
		if err == nil {
			e.logger.WithFields(map[string]any{
				"product_id": productID.String(),
			}).Info("Rating recompute succeeded on background retry")
			return
		}
		if e.ctx.Err() != nil {
			return
		}

		e.logger.WithFields(map[string]any{
			"product_id": productID.String(),
			"delay_ms":   delay.Milliseconds(),
		}).Warn("Background rating recompute failed again")

		delay = min(delay*2, maxRetryDelay)
	}
}

// PendingRetries returns the number of products waiting for a background retry
func (e *Engine) PendingRetries() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Shutdown stops scheduling retries, cancels waiting ones and waits for in-flight recomputes
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	pendingCount := len(e.pending)
	e.mu.Unlock()

	e.cancel()

	e.logger.WithFields(map[string]any{
		"cancelled_retries": pendingCount,
	}).Info("Shutting down rating engine")

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.logger.Warn("Rating engine shutdown timeout reached")
		return ctx.Err()
	}
}

func (e *Engine) storeInCache(ctx context.Context, productID uuid.UUID, summary *domain.RatingSummary) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetRatingSummary(ctx, productID, summary); err != nil {
		e.logger.Warnf("Failed to cache rating summary for product %s: %v", productID, err)
	}
}

func (e *Engine) dropFromCache(ctx context.Context, productID uuid.UUID) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateRatingSummary(ctx, productID); err != nil {
		e.logger.Warnf("Failed to invalidate rating summary for product %s: %v", productID, err)
	}
}
