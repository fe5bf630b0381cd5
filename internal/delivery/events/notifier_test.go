package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func encodeEvent(t *testing.T, event domain.ReviewEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func TestNotificationHandler_NotifiesAuthorOfModeration(t *testing.T) {
	sender := new(mockSender)
	handler := NotificationHandler(sender, logger.New("test"))

	review := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: uuid.New()}
	event := domain.ReviewEvent{
		Type:      domain.EventReviewApproved,
		ProductID: review.ProductID,
		ReviewID:  review.ID,
		ActorID:   uuid.New(),
		Timestamp: time.Now(),
		Review:    review,
	}

	sender.On("Send", mock.Anything, Notification{
		RecipientID: review.AuthorID,
		ReviewID:    review.ID,
		ProductID:   review.ProductID,
		Subject:     "Your review has been published",
	}).Return(nil)

	err := handler(encodeEvent(t, event))

	assert.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestNotificationHandler_SkipsOwnActionsAndVotes(t *testing.T) {
	sender := new(mockSender)
	handler := NotificationHandler(sender, logger.New("test"))

	author := uuid.New()
	review := &domain.Review{ID: uuid.New(), ProductID: uuid.New(), AuthorID: author}

	ownDelete := domain.ReviewEvent{Type: domain.EventReviewDeleted, ReviewID: review.ID, ActorID: author, Review: review}
	vote := domain.ReviewEvent{Type: domain.EventReviewVoted, ReviewID: review.ID, ActorID: uuid.New(), Review: review}

	assert.NoError(t, handler(encodeEvent(t, ownDelete)))
	assert.NoError(t, handler(encodeEvent(t, vote)))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotificationHandler_RejectsMalformedPayload(t *testing.T) {
	handler := NotificationHandler(new(mockSender), logger.New("test"))

	err := handler([]byte("not json"))

	assert.Error(t, err)
}
