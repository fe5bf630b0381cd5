package events

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Pesokrava/review_engine/internal/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestBreakerPublisher_PassesThrough(t *testing.T) {
	inner := new(mockPublisher)
	inner.On("Publish", mock.Anything, "reviews.events", []byte(`{}`)).Return(nil)

	publisher := NewBreakerPublisher(inner, DefaultBreakerConfig(), logger.New("test"))

	err := publisher.Publish(context.Background(), "reviews.events", []byte(`{}`))

	assert.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, publisher.State())
	inner.AssertExpectations(t)
}

func TestBreakerPublisher_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := new(mockPublisher)
	brokerDown := errors.New("nats: no responders available for request")
	inner.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(brokerDown)

	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 3
	publisher := NewBreakerPublisher(inner, cfg, logger.New("test"))

	for i := 0; i < 3; i++ {
		err := publisher.Publish(context.Background(), "reviews.events", nil)
		assert.ErrorIs(t, err, brokerDown)
	}

	assert.Equal(t, gobreaker.StateOpen, publisher.State())

	err := publisher.Publish(context.Background(), "reviews.events", nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	inner.AssertNumberOfCalls(t, "Publish", 3)
}
