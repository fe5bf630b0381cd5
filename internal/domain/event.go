package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a review lifecycle event
type EventType string

// Review event types
const (
	EventReviewCreated    EventType = "review.created"
	EventReviewUpdated    EventType = "review.updated"
	EventReviewApproved   EventType = "review.approved"
	EventReviewUnapproved EventType = "review.unapproved"
	EventReviewDeleted    EventType = "review.deleted"
	EventReviewResponded  EventType = "review.responded"
	EventReviewVoted      EventType = "review.voted"
	EventReviewVerified   EventType = "review.verified"
)

// AffectsRating reports whether an event of this type can change the approved rating population.
// Votes, responses and verification never do.
func (t EventType) AffectsRating() bool {
	switch t {
	case EventReviewCreated, EventReviewUpdated, EventReviewApproved, EventReviewUnapproved, EventReviewDeleted:
		return true
	default:
		return false
	}
}

// ReviewEvent is published after every committed review mutation
type ReviewEvent struct {
	Type      EventType `json:"type"`
	ProductID uuid.UUID `json:"product_id"`
	ReviewID  uuid.UUID `json:"review_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Review    *Review   `json:"review,omitempty"`
}
