package events

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	"github.com/Pesokrava/review_engine/internal/pkg/metrics"
)

// EventPublisher publishes raw event payloads to a subject
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// BreakerConfig holds configuration for the publisher circuit breaker
type BreakerConfig struct {
	// Name identifies this breaker in logs
	Name string
	// MaxRequests is the number of trial publishes allowed while half-open
	MaxRequests uint32
	// Interval clears failure counts while closed; 0 never clears them
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the defaults used by the API
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "review-events",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerPublisher stops calling an unhealthy broker so background publishes fail fast
type BreakerPublisher struct {
	inner   EventPublisher
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *logger.Logger
}

// NewBreakerPublisher wraps inner with a circuit breaker
func NewBreakerPublisher(inner EventPublisher, cfg BreakerConfig, log *logger.Logger) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Event publisher circuit breaker state change")
			metrics.PublisherBreakerState.Set(stateToFloat(to))
		},
	}

	metrics.PublisherBreakerState.Set(0)

	return &BreakerPublisher{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:  log,
	}
}

// Publish forwards to the wrapped publisher unless the breaker is open
func (b *BreakerPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Publish(ctx, subject, data)
	})

	switch {
	case err == nil:
		metrics.EventsPublished.WithLabelValues("success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EventsPublished.WithLabelValues("rejected").Inc()
	default:
		metrics.EventsPublished.WithLabelValues("failure").Inc()
	}

	return err
}

// State returns the current breaker state
func (b *BreakerPublisher) State() gobreaker.State {
	return b.breaker.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
