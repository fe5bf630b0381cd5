package domain

import (
	"context"

	"github.com/google/uuid"
)

// RatingSummary is the denormalized aggregate cached on a product.
// Version increases with every aggregate write and orders cached copies.
type RatingSummary struct {
	AverageRating float64 `json:"average_rating" db:"average_rating"`
	ReviewCount   int     `json:"review_count" db:"review_count"`
	Version       int64   `json:"-" db:"rating_version"`
}

// SameAggregate reports whether both summaries hold the same average and count, ignoring version
func (s RatingSummary) SameAggregate(other RatingSummary) bool {
	return s.AverageRating == other.AverageRating && s.ReviewCount == other.ReviewCount
}

// CalculateSummary derives the aggregate from the complete set of approved ratings.
// An empty population yields {0, 0}.
func CalculateSummary(ratings []int) RatingSummary {
	if len(ratings) == 0 {
		return RatingSummary{}
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}

	return RatingSummary{
		AverageRating: float64(sum) / float64(len(ratings)),
		ReviewCount:   len(ratings),
	}
}

// AggregateStore re-derives and writes product rating aggregates
type AggregateStore interface {
	// RecomputeAggregate reads every approved rating for the product and overwrites its
	// aggregate in one atomic write, bumping its rating version. Returns ErrNotFound if the
	// product does not exist.
	RecomputeAggregate(ctx context.Context, productID uuid.UUID) (*RatingSummary, error)

	// ListStaleProducts returns products whose stored aggregate disagrees with a fresh derivation
	ListStaleProducts(ctx context.Context, limit int) ([]uuid.UUID, error)
}
