package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
)

// Notification is a message addressed to a review author
type Notification struct {
	RecipientID uuid.UUID
	ReviewID    uuid.UUID
	ProductID   uuid.UUID
	Subject     string
}

// Sender delivers notifications; email delivery lives outside this service
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

// Send logs the notification
func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.logger.WithFields(map[string]any{
		"recipient_id": n.RecipientID.String(),
		"review_id":    n.ReviewID.String(),
		"product_id":   n.ProductID.String(),
	}).Info(n.Subject)
	return nil
}

var notificationSubjects = map[domain.EventType]string{
	domain.EventReviewApproved:   "Your review has been published",
	domain.EventReviewUnapproved: "Your review has been hidden by a moderator",
	domain.EventReviewResponded:  "A moderator replied to your review",
	domain.EventReviewDeleted:    "Your review was removed by a moderator",
	domain.EventReviewVerified:   "Your review now shows a verified purchase badge",
}

// NotificationHandler turns review events into author notifications.
// Authors are not notified about their own actions.
func NotificationHandler(sender Sender, log *logger.Logger) func(data []byte) error {
	return func(data []byte) error {
		var event domain.ReviewEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to unmarshal review event: %w", err)
		}

		subject, ok := notificationSubjects[event.Type]
		if !ok || event.Review == nil {
			log.Debugf("No notification for %s event on review %s", event.Type, event.ReviewID)
			return nil
		}

		if event.ActorID == event.Review.AuthorID {
			return nil
		}

		return sender.Send(context.Background(), Notification{
			RecipientID: event.Review.AuthorID,
			ReviewID:    event.ReviewID,
			ProductID:   event.ProductID,
			Subject:     subject,
		})
	}
}
