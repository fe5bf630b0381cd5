// Package memory provides map-backed repositories with the same semantics as the
// PostgreSQL ones. It backs local runs without a database and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_engine/internal/domain"
)

// Store holds products and reviews in memory; every repository handed out by it shares one lock
type Store struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*domain.Product
	reviews  map[uuid.UUID]*domain.Review
	now      func() time.Time
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		products: make(map[uuid.UUID]*domain.Product),
		reviews:  make(map[uuid.UUID]*domain.Review),
		now:      time.Now,
	}
}

// Products returns the product repository view of the store
func (s *Store) Products() *ProductRepository {
	return &ProductRepository{store: s}
}

// Reviews returns the review repository view of the store
func (s *Store) Reviews() *ReviewRepository {
	return &ReviewRepository{store: s}
}

// RecomputeAggregate re-derives a product's aggregate from its approved reviews
func (s *Store) RecomputeAggregate(_ context.Context, productID uuid.UUID) (*domain.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok || product.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}

	var ratings []int
	for _, r := range s.reviews {
		if r.ProductID == productID && r.IsApproved && r.DeletedAt == nil {
			ratings = append(ratings, r.Rating)
		}
	}

	summary := domain.CalculateSummary(ratings)
	product.AverageRating = summary.AverageRating
	product.ReviewCount = summary.ReviewCount
	product.UpdatedAt = s.now()
	product.RatingVersion++
	summary.Version = product.RatingVersion

	return &summary, nil
}

// ListStaleProducts returns products whose stored aggregate disagrees with their approved reviews
func (s *Store) ListStaleProducts(_ context.Context, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ratings := make(map[uuid.UUID][]int)
	for _, r := range s.reviews {
		if r.IsApproved && r.DeletedAt == nil {
			ratings[r.ProductID] = append(ratings[r.ProductID], r.Rating)
		}
	}

	var stale []*domain.Product
	for id, p := range s.products {
		if p.DeletedAt != nil {
			continue
		}
		if !domain.CalculateSummary(ratings[id]).SameAggregate(p.Summary()) {
			stale = append(stale, p)
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})

	ids := make([]uuid.UUID, 0, len(stale))
	for _, p := range stale {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func copyProduct(p *domain.Product) *domain.Product {
	cp := *p
	return &cp
}

func copyReview(r *domain.Review) *domain.Review {
	cp := *r
	cp.Images = append(domain.ReviewImages{}, r.Images...)
	cp.Likes = append([]uuid.UUID{}, r.Likes...)
	cp.Dislikes = append([]uuid.UUID{}, r.Dislikes...)
	if r.Response != nil {
		resp := *r.Response
		cp.Response = &resp
	}
	return &cp
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
