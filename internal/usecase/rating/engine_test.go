package rating

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
)

// fakeStore fails the first `failures` calls, then returns summary
type fakeStore struct {
	mu       sync.Mutex
	failures int
	err      error
	summary  domain.RatingSummary
	calls    atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	hold        time.Duration
}

func (s *fakeStore) RecomputeAggregate(_ context.Context, _ uuid.UUID) (*domain.RatingSummary, error) {
	s.calls.Add(1)

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if s.hold > 0 {
		time.Sleep(s.hold)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return nil, s.err
	}
	summary := s.summary
	return &summary, nil
}

func (s *fakeStore) ListStaleProducts(_ context.Context, _ int) ([]uuid.UUID, error) {
	return nil, nil
}

type mockSummaryCache struct {
	mock.Mock
}

func (m *mockSummaryCache) SetRatingSummary(ctx context.Context, productID uuid.UUID, summary *domain.RatingSummary) error {
	args := m.Called(ctx, productID, summary)
	return args.Error(0)
}

func (m *mockSummaryCache) InvalidateRatingSummary(ctx context.Context, productID uuid.UUID) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func testConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		RetryDelay:     5 * time.Millisecond,
	}
}

func TestEngine_Recompute_Success(t *testing.T) {
	// Setup
	store := &fakeStore{summary: domain.RatingSummary{AverageRating: 4.5, ReviewCount: 2}}
	cache := new(mockSummaryCache)
	engine := NewEngine(store, cache, testConfig(), logger.New("test"))
	productID := uuid.New()

	cache.On("SetRatingSummary", mock.Anything, productID, &domain.RatingSummary{AverageRating: 4.5, ReviewCount: 2}).
		Return(nil)

	// Execute
	summary, err := engine.Recompute(context.Background(), productID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RatingSummary{AverageRating: 4.5, ReviewCount: 2}, summary)
	assert.Equal(t, int32(1), store.calls.Load())
	cache.AssertExpectations(t)
}

func TestEngine_Recompute_RetriesTransientFailure(t *testing.T) {
	// Setup
	store := &fakeStore{failures: 2, err: errors.New("connection reset"), summary: domain.RatingSummary{AverageRating: 3, ReviewCount: 1}}
	engine := NewEngine(store, nil, testConfig(), logger.New("test"))

	// Execute
	summary, err := engine.Recompute(context.Background(), uuid.New())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ReviewCount)
	assert.Equal(t, int32(3), store.calls.Load())
}

func TestEngine_Recompute_ExhaustedRetries(t *testing.T) {
	// Setup
	cause := errors.New("database unavailable")
	store := &fakeStore{failures: 10, err: cause}
	engine := NewEngine(store, nil, testConfig(), logger.New("test"))
	productID := uuid.New()

	// Execute
	_, err := engine.Recompute(context.Background(), productID)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecomputation)
	assert.ErrorIs(t, err, cause)

	var recomputeErr *domain.RecomputationError
	require.ErrorAs(t, err, &recomputeErr)
	assert.Equal(t, productID, recomputeErr.ProductID)
	assert.Equal(t, int32(3), store.calls.Load())
}

func TestEngine_Recompute_MissingProductIsNotAnError(t *testing.T) {
	// Setup
	store := &fakeStore{failures: 1, err: domain.ErrNotFound}
	cache := new(mockSummaryCache)
	engine := NewEngine(store, cache, testConfig(), logger.New("test"))
	productID := uuid.New()

	cache.On("InvalidateRatingSummary", mock.Anything, productID).Return(nil)

	// Execute
	summary, err := engine.Recompute(context.Background(), productID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RatingSummary{}, summary)
	assert.Equal(t, int32(1), store.calls.Load())
	cache.AssertExpectations(t)
}

func TestEngine_Recompute_CacheFailureDoesNotFail(t *testing.T) {
	// Setup
	store := &fakeStore{summary: domain.RatingSummary{AverageRating: 1, ReviewCount: 1}}
	cache := new(mockSummaryCache)
	engine := NewEngine(store, cache, testConfig(), logger.New("test"))

	cache.On("SetRatingSummary", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	// Execute
	_, err := engine.Recompute(context.Background(), uuid.New())

	// Assert
	assert.NoError(t, err)
}

func TestEngine_Recompute_SerializedPerProduct(t *testing.T) {
	// Setup
	store := &fakeStore{hold: 2 * time.Millisecond}
	engine := NewEngine(store, nil, testConfig(), logger.New("test"))
	productID := uuid.New()

	// Execute
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Recompute(context.Background(), productID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, int32(20), store.calls.Load())
	assert.Equal(t, int32(1), store.maxInFlight.Load())
	assert.Equal(t, 0, engine.locks.size())
}

func TestEngine_Recompute_DifferentProductsRunConcurrently(t *testing.T) {
	// Setup
	store := &fakeStore{hold: 20 * time.Millisecond}
	engine := NewEngine(store, nil, testConfig(), logger.New("test"))

	// Execute
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.Recompute(context.Background(), uuid.New())
		}()
	}
	wg.Wait()

	// Assert
	assert.Greater(t, store.maxInFlight.Load(), int32(1))
}

func TestEngine_Trigger_SchedulesBackgroundRetry(t *testing.T) {
	// Setup: fail every attempt of the synchronous recompute, then recover
	store := &fakeStore{failures: 3, err: errors.New("timeout"), summary: domain.RatingSummary{AverageRating: 2, ReviewCount: 1}}
	engine := NewEngine(store, nil, testConfig(), logger.New("test"))
	productID := uuid.New()

	// Execute
	engine.Trigger(context.Background(), productID)

	// Assert
	assert.Eventually(t, func() bool {
		return engine.PendingRetries() == 0 && store.calls.Load() == 4
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, engine.Shutdown(context.Background()))
}

func TestEngine_Trigger_DeduplicatesRetries(t *testing.T) {
	// Setup
	store := &fakeStore{failures: 1000, err: errors.New("down")}
	cfg := testConfig()
	cfg.RetryDelay = time.Hour
	engine := NewEngine(store, nil, cfg, logger.New("test"))
	productID := uuid.New()

	// Execute
	engine.Trigger(context.Background(), productID)
	engine.Trigger(context.Background(), productID)
	engine.Trigger(context.Background(), uuid.New())

	// Assert
	assert.Equal(t, 2, engine.PendingRetries())

	require.NoError(t, engine.Shutdown(context.Background()))
	assert.Equal(t, 0, engine.PendingRetries())
}

func TestEngine_Trigger_IgnoresCallerCancellation(t *testing.T) {
	// Setup
	store := &fakeStore{summary: domain.RatingSummary{AverageRating: 5, ReviewCount: 1}}
	engine := NewEngine(store, nil, testConfig(), logger.New("test"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Execute
	engine.Trigger(ctx, uuid.New())

	// Assert
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, 0, engine.PendingRetries())
}

func TestEngine_Shutdown_StopsNewRetries(t *testing.T) {
	// Setup
	store := &fakeStore{failures: 1000, err: errors.New("down")}
	engine := NewEngine(store, nil, testConfig(), logger.New("test"))
	require.NoError(t, engine.Shutdown(context.Background()))

	// Execute
	engine.Trigger(context.Background(), uuid.New())

	// Assert
	assert.Equal(t, 0, engine.PendingRetries())
}
