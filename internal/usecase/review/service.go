package review

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	"github.com/Pesokrava/review_engine/internal/pkg/metrics"
	"github.com/Pesokrava/review_engine/internal/pkg/sanitize"
	"github.com/Pesokrava/review_engine/internal/pkg/validator"
	"github.com/Pesokrava/review_engine/internal/repository/cache"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	publishTimeout  = 5 * time.Second
)

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// RatingTrigger recomputes a product's rating aggregate after a committed mutation
type RatingTrigger interface {
	Trigger(ctx context.Context, productID uuid.UUID)
}

// ListCache caches pages of approved reviews per product
type ListCache interface {
	GetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int) (*cache.ReviewPage, error)
	SetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int, page *cache.ReviewPage) error
	InvalidateReviewsList(ctx context.Context, productID uuid.UUID) error
}

// Config holds review policy settings
type Config struct {
	AutoApprove  bool
	EventSubject string
}

// CreateInput is the caller-supplied content of a new review
type CreateInput struct {
	ProductID uuid.UUID
	Title     string
	Body      string
	Rating    int
	Images    domain.ReviewImages
}

type responseInput struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// Service implements the review store operations: validation, authorization,
// recompute triggers, cache invalidation and event publishing.
// Cache and publisher are optional.
type Service struct {
	repo      domain.ReviewRepository
	rating    RatingTrigger
	cache     ListCache
	publisher EventPublisher
	cfg       Config
	logger    *logger.Logger
	wg        sync.WaitGroup
	now       func() time.Time
}

// NewService creates a new review service
func NewService(
	repo domain.ReviewRepository,
	rating RatingTrigger,
	cache ListCache,
	publisher EventPublisher,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.EventSubject == "" {
		cfg.EventSubject = "reviews.events"
	}

	return &Service{
		repo:      repo,
		rating:    rating,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// CreateReview creates a review authored by the actor.
// The aggregate is recomputed only when the review is created pre-approved.
func (s *Service) CreateReview(ctx context.Context, actor domain.Actor, input CreateInput) (*domain.Review, error) {
	review := &domain.Review{
		ProductID:  input.ProductID,
		AuthorID:   actor.UserID,
		Title:      sanitize.Text(input.Title),
		Body:       sanitize.Text(input.Body),
		Rating:     input.Rating,
		IsApproved: s.cfg.AutoApprove,
		Images:     sanitizeImages(input.Images),
	}

	if err := validator.Struct(review); err != nil {
		s.logger.Debugf("Review validation failed: %v", err)
		return nil, err
	}

	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			s.logger.WithFields(map[string]any{
				"product_id": review.ProductID,
				"author_id":  review.AuthorID,
			}).Info("Duplicate review rejected")
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("Failed to create review", err)
		}
		return nil, err
	}

	metrics.ReviewMutationsTotal.WithLabelValues("create").Inc()

	if review.IsApproved {
		s.populationChanged(ctx, review.ProductID)
	}

	s.publishEvent(domain.EventReviewCreated, actor, review)

	s.logger.WithFields(map[string]any{
		"review_id":  review.ID,
		"product_id": review.ProductID,
		"rating":     review.Rating,
		"approved":   review.IsApproved,
	}).Info("Review created successfully")

	return review, nil
}

// GetReview retrieves a review. Unapproved reviews are visible only to their author and moderators.
func (s *Service) GetReview(ctx context.Context, viewer domain.Actor, id uuid.UUID) (*domain.Review, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logRead("Failed to get review", id, err)
		return nil, err
	}

	if !review.IsApproved && !viewer.IsModerator() && viewer.UserID != review.AuthorID {
		return nil, domain.ErrNotFound
	}

	return review, nil
}

// UpdateReview edits the author-owned fields of a review
func (s *Service) UpdateReview(ctx context.Context, actor domain.Actor, id uuid.UUID, update domain.ReviewUpdate) (*domain.Review, error) {
	if update.Empty() {
		return nil, domain.NewValidationError("fields", "at least one field must be provided")
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logRead("Failed to get review for update", id, err)
		return nil, err
	}

	if existing.AuthorID != actor.UserID {
		return nil, domain.ErrForbidden
	}

	updated := *existing
	if update.Title != nil {
		updated.Title = sanitize.Text(*update.Title)
	}
	if update.Body != nil {
		updated.Body = sanitize.Text(*update.Body)
	}
	if update.Rating != nil {
		updated.Rating = *update.Rating
	}
	if update.Images != nil {
		updated.Images = sanitizeImages(*update.Images)
	}

	if err := validator.Struct(&updated); err != nil {
		s.logger.Debugf("Review validation failed: %v", err)
		return nil, err
	}

	stored, err := s.repo.Update(ctx, &updated)
	if err != nil {
		s.logRead("Failed to update review", id, err)
		return nil, err
	}

	metrics.ReviewMutationsTotal.WithLabelValues("update").Inc()

	// Decide on the row as written: an approval may have landed after the read above.
	if stored.IsApproved {
		if update.Rating != nil {
			s.populationChanged(ctx, stored.ProductID)
		} else {
			s.invalidateLists(ctx, stored.ProductID)
		}
	}

	s.publishEvent(domain.EventReviewUpdated, actor, stored)

	s.logger.WithFields(map[string]any{
		"review_id":  stored.ID,
		"product_id": stored.ProductID,
		"rating":     stored.Rating,
	}).Info("Review updated successfully")

	return stored, nil
}

// SetApproval approves or unapproves a review. Moderators only.
// The aggregate is recomputed unconditionally.
func (s *Service) SetApproval(ctx context.Context, actor domain.Actor, id uuid.UUID, approved bool) (*domain.Review, error) {
	if !actor.IsModerator() {
		return nil, domain.ErrForbidden
	}

	review, err := s.repo.SetApproval(ctx, id, approved)
	if err != nil {
		s.logRead("Failed to set review approval", id, err)
		return nil, err
	}

	metrics.ReviewMutationsTotal.WithLabelValues("approval").Inc()

	s.populationChanged(ctx, review.ProductID)

	eventType := domain.EventReviewApproved
	if !approved {
		eventType = domain.EventReviewUnapproved
	}
	s.publishEvent(eventType, actor, review)

	s.logger.WithFields(map[string]any{
		"review_id":    review.ID,
		"product_id":   review.ProductID,
		"approved":     approved,
		"moderator_id": actor.UserID,
	}).Info("Review approval changed")

	return review, nil
}

// DeleteReview soft-deletes a review. Allowed for its author and moderators.
func (s *Service) DeleteReview(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logRead("Failed to get review for deletion", id, err)
		return err
	}

	if review.AuthorID != actor.UserID && !actor.IsModerator() {
		return domain.ErrForbidden
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logRead("Failed to delete review", id, err)
		return err
	}

	metrics.ReviewMutationsTotal.WithLabelValues("delete").Inc()

	if deleted.IsApproved {
		s.populationChanged(ctx, deleted.ProductID)
	}

	s.publishEvent(domain.EventReviewDeleted, actor, deleted)

	s.logger.WithFields(map[string]any{
		"review_id":  id,
		"product_id": deleted.ProductID,
	}).Info("Review deleted successfully")

	return nil
}

// AddResponse attaches the moderator's reply, replacing any previous one. Moderators only.
func (s *Service) AddResponse(ctx context.Context, actor domain.Actor, id uuid.UUID, text string) (*domain.Review, error) {
	if !actor.IsModerator() {
		return nil, domain.ErrForbidden
	}

	input := responseInput{Text: sanitize.Text(text)}
	if err := validator.Struct(input); err != nil {
		return nil, err
	}

	review, err := s.repo.SetResponse(ctx, id, &domain.ModeratorResponse{
		Text:        input.Text,
		AdminID:     actor.UserID,
		RespondedAt: s.now().UTC(),
	})
	if err != nil {
		s.logRead("Failed to set review response", id, err)
		return nil, err
	}

	metrics.ReviewMutationsTotal.WithLabelValues("response").Inc()

	if review.IsApproved {
		s.invalidateLists(ctx, review.ProductID)
	}

	s.publishEvent(domain.EventReviewResponded, actor, review)

	s.logger.WithFields(map[string]any{
		"review_id":    review.ID,
		"product_id":   review.ProductID,
		"moderator_id": actor.UserID,
	}).Info("Review response saved")

	return review, nil
}

// MarkVerifiedPurchase flags a review as written by a buyer. The flag is never cleared.
func (s *Service) MarkVerifiedPurchase(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Review, error) {
	if !actor.IsModerator() {
		return nil, domain.ErrForbidden
	}

	review, err := s.repo.MarkVerifiedPurchase(ctx, id)
	if err != nil {
		s.logRead("Failed to mark verified purchase", id, err)
		return nil, err
	}

	if review.IsApproved {
		s.invalidateLists(ctx, review.ProductID)
	}

	s.publishEvent(domain.EventReviewVerified, actor, review)

	return review, nil
}

// ToggleLike toggles the actor's like on a review
func (s *Service) ToggleLike(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Review, error) {
	return s.vote(ctx, actor, id, domain.VoteActionLike)
}

// ToggleDislike toggles the actor's dislike on a review
func (s *Service) ToggleDislike(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Review, error) {
	return s.vote(ctx, actor, id, domain.VoteActionDislike)
}

// vote never triggers a recompute: votes do not change ratings
func (s *Service) vote(ctx context.Context, actor domain.Actor, id uuid.UUID, action domain.VoteAction) (*domain.Review, error) {
	review, err := s.repo.ApplyVote(ctx, id, actor.UserID, action)
	if err != nil {
		s.logRead("Failed to apply vote", id, err)
		return nil, err
	}

	metrics.VotesTotal.WithLabelValues(string(action)).Inc()

	if review.IsApproved {
		s.invalidateLists(ctx, review.ProductID)
	}

	s.publishEvent(domain.EventReviewVoted, actor, review)

	s.logger.WithFields(map[string]any{
		"review_id":     review.ID,
		"voter_id":      actor.UserID,
		"action":        action,
		"state":         review.Ledger().StateOf(actor.UserID).String(),
		"helpful_count": review.HelpfulCount,
	}).Debug("Vote applied")

	return review, nil
}

// ListProductReviews retrieves approved reviews for a product with caching
func (s *Service) ListProductReviews(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	limit, offset = normalizePage(limit, offset)

	if s.cache != nil {
		page, err := s.cache.GetReviewsList(ctx, productID, limit, offset)
		if err == nil {
			s.logger.Debugf("Cache hit for product %s reviews (limit=%d, offset=%d)", productID, limit, offset)
			return page.Reviews, page.Total, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warnf("Failed to read cached reviews for product %s: %v", productID, err)
		}
	}

	reviews, err := s.repo.ListApprovedByProductID(ctx, productID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list reviews by product ID", err)
		return nil, 0, err
	}

	total, err := s.repo.CountApprovedByProductID(ctx, productID)
	if err != nil {
		s.logger.Error("Failed to count reviews", err)
		return nil, 0, err
	}

	if s.cache != nil {
		page := &cache.ReviewPage{Reviews: reviews, Total: total}
		if err := s.cache.SetReviewsList(ctx, productID, limit, offset, page); err != nil {
			s.logger.Warnf("Failed to cache reviews for product %s (limit=%d, offset=%d): %v", productID, limit, offset, err)
		}
	}

	return reviews, total, nil
}

// ListPendingReviews returns the moderation queue, oldest first. Moderators only.
func (s *Service) ListPendingReviews(ctx context.Context, actor domain.Actor, limit, offset int) ([]*domain.Review, int, error) {
	if !actor.IsModerator() {
		return nil, 0, domain.ErrForbidden
	}

	limit, offset = normalizePage(limit, offset)

	reviews, err := s.repo.ListPending(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list pending reviews", err)
		return nil, 0, err
	}

	total, err := s.repo.CountPending(ctx)
	if err != nil {
		s.logger.Error("Failed to count pending reviews", err)
		return nil, 0, err
	}

	return reviews, total, nil
}

// ListAuthorReviews returns the actor's own reviews, approved or not
func (s *Service) ListAuthorReviews(ctx context.Context, actor domain.Actor, limit, offset int) ([]*domain.Review, error) {
	limit, offset = normalizePage(limit, offset)

	reviews, err := s.repo.ListByAuthorID(ctx, actor.UserID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list author reviews", err)
		return nil, err
	}

	return reviews, nil
}

// Wait blocks until in-flight event publishes finish
func (s *Service) Wait() {
	s.wg.Wait()
}

// populationChanged runs after a committed change to the approved population of a product
func (s *Service) populationChanged(ctx context.Context, productID uuid.UUID) {
	s.rating.Trigger(ctx, productID)
	s.invalidateLists(ctx, productID)
}

func (s *Service) invalidateLists(ctx context.Context, productID uuid.UUID) {
	if s.cache == nil {
		return
	}
	// Stale pages would show removed reviews or outdated vote counts
	if err := s.cache.InvalidateReviewsList(ctx, productID); err != nil {
		s.logger.Warnf("Failed to invalidate review cache for product %s: %v", productID, err)
	}
}

// publishEvent publishes a review event (non-blocking)
func (s *Service) publishEvent(eventType domain.EventType, actor domain.Actor, review *domain.Review) {
	if s.publisher == nil {
		return
	}

	event := domain.ReviewEvent{
		Type:      eventType,
		ProductID: review.ProductID,
		ReviewID:  review.ID,
		ActorID:   actor.UserID,
		Timestamp: s.now().UTC(),
		Review:    review,
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Errorf(err, "Failed to marshal event for review %s", review.ID)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := s.publisher.Publish(ctx, s.cfg.EventSubject, data); err != nil {
			s.logger.Errorf(err, "Failed to publish %s event for review %s", eventType, review.ID)
		}
	}()
}

func (s *Service) logRead(msg string, id uuid.UUID, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debugf("Review not found: %s", id)
		return
	}
	s.logger.Error(msg, err)
}

func sanitizeImages(images domain.ReviewImages) domain.ReviewImages {
	out := make(domain.ReviewImages, 0, len(images))
	for _, img := range images {
		out = append(out, domain.ReviewImage{
			URL:     sanitize.Text(img.URL),
			AltText: sanitize.Text(img.AltText),
		})
	}
	return out
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
