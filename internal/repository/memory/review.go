package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_engine/internal/domain"
)

// ReviewRepository implements domain.ReviewRepository in memory
type ReviewRepository struct {
	store *Store
}

// Create creates a new review; one live review per author and product
func (r *ReviewRepository) Create(_ context.Context, review *domain.Review) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[review.ProductID]
	if !ok || p.DeletedAt != nil {
		return domain.ErrNotFound
	}

	for _, existing := range s.reviews {
		if existing.DeletedAt == nil && existing.ProductID == review.ProductID && existing.AuthorID == review.AuthorID {
			return domain.ErrAlreadyExists
		}
	}

	now := s.now()
	review.ID = uuid.New()
	review.Likes = []uuid.UUID{}
	review.Dislikes = []uuid.UUID{}
	review.HelpfulCount = 0
	review.CreatedAt = now
	review.UpdatedAt = now
	if review.Images == nil {
		review.Images = domain.ReviewImages{}
	}
	s.reviews[review.ID] = copyReview(review)
	return nil
}

// GetByID retrieves a review by ID
func (r *ReviewRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Review, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	review, err := r.live(id)
	if err != nil {
		return nil, err
	}
	return copyReview(review), nil
}

// live returns the stored review; callers hold the lock
func (r *ReviewRepository) live(id uuid.UUID) (*domain.Review, error) {
	review, ok := r.store.reviews[id]
	if !ok || review.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	return review, nil
}

func (r *ReviewRepository) filter(match func(*domain.Review) bool) []*domain.Review {
	var out []*domain.Review
	for _, review := range r.store.reviews {
		if review.DeletedAt == nil && match(review) {
			out = append(out, copyReview(review))
		}
	}
	return out
}

func newestFirst(reviews []*domain.Review) {
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
}

// ListApprovedByProductID retrieves approved reviews for a product, newest first
func (r *ReviewRepository) ListApprovedByProductID(_ context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	reviews := r.filter(func(rv *domain.Review) bool {
		return rv.ProductID == productID && rv.IsApproved
	})
	newestFirst(reviews)
	return page(reviews, limit, offset), nil
}

// CountApprovedByProductID returns the number of approved reviews for a product
func (r *ReviewRepository) CountApprovedByProductID(_ context.Context, productID uuid.UUID) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return len(r.filter(func(rv *domain.Review) bool {
		return rv.ProductID == productID && rv.IsApproved
	})), nil
}

// ListPending retrieves unapproved reviews, oldest first
func (r *ReviewRepository) ListPending(_ context.Context, limit, offset int) ([]*domain.Review, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	reviews := r.filter(func(rv *domain.Review) bool { return !rv.IsApproved })
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.Before(reviews[j].CreatedAt)
	})
	return page(reviews, limit, offset), nil
}

// CountPending returns the number of unapproved reviews
func (r *ReviewRepository) CountPending(_ context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return len(r.filter(func(rv *domain.Review) bool { return !rv.IsApproved })), nil
}

// ListByAuthorID retrieves the reviews written by a user, newest first
func (r *ReviewRepository) ListByAuthorID(_ context.Context, authorID uuid.UUID, limit, offset int) ([]*domain.Review, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	reviews := r.filter(func(rv *domain.Review) bool { return rv.AuthorID == authorID })
	newestFirst(reviews)
	return page(reviews, limit, offset), nil
}

// Update persists the author-editable fields of a review and returns the stored row
func (r *ReviewRepository) Update(_ context.Context, review *domain.Review) (*domain.Review, error) {
	return r.mutate(review.ID, func(rv *domain.Review) {
		rv.Title = review.Title
		rv.Body = review.Body
		rv.Rating = review.Rating
		rv.Images = append(domain.ReviewImages{}, review.Images...)
		rv.UpdatedAt = r.store.now()
	})
}

func (r *ReviewRepository) mutate(id uuid.UUID, fn func(*domain.Review)) (*domain.Review, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, err := r.live(id)
	if err != nil {
		return nil, err
	}
	fn(stored)
	return copyReview(stored), nil
}

// SetApproval sets the approval flag
func (r *ReviewRepository) SetApproval(_ context.Context, id uuid.UUID, approved bool) (*domain.Review, error) {
	return r.mutate(id, func(rv *domain.Review) {
		rv.IsApproved = approved
		rv.UpdatedAt = r.store.now()
	})
}

// SetResponse overwrites the moderator response
func (r *ReviewRepository) SetResponse(_ context.Context, id uuid.UUID, response *domain.ModeratorResponse) (*domain.Review, error) {
	return r.mutate(id, func(rv *domain.Review) {
		resp := *response
		rv.Response = &resp
		rv.UpdatedAt = r.store.now()
	})
}

// MarkVerifiedPurchase sets the verified purchase flag
func (r *ReviewRepository) MarkVerifiedPurchase(_ context.Context, id uuid.UUID) (*domain.Review, error) {
	return r.mutate(id, func(rv *domain.Review) {
		if !rv.VerifiedPurchase {
			rv.VerifiedPurchase = true
			rv.UpdatedAt = r.store.now()
		}
	})
}

// ApplyVote applies a vote toggle under the store lock
func (r *ReviewRepository) ApplyVote(_ context.Context, id, voterID uuid.UUID, action domain.VoteAction) (*domain.Review, error) {
	return r.mutate(id, func(rv *domain.Review) {
		rv.ApplyLedger(rv.Ledger().Apply(voterID, action))
		rv.UpdatedAt = r.store.now()
	})
}

// Delete soft-deletes a review and returns it as it was at deletion
func (r *ReviewRepository) Delete(_ context.Context, id uuid.UUID) (*domain.Review, error) {
	return r.mutate(id, func(rv *domain.Review) {
		now := r.store.now()
		rv.DeletedAt = &now
	})
}
