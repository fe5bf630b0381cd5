package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCalculateSummary(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    RatingSummary
	}{
		{"empty population", nil, RatingSummary{}},
		{"single", []int{5}, RatingSummary{AverageRating: 5, ReviewCount: 1}},
		{"pair", []int{5, 3}, RatingSummary{AverageRating: 4, ReviewCount: 2}},
		{"non integral mean", []int{1, 2, 2}, RatingSummary{AverageRating: 5.0 / 3.0, ReviewCount: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateSummary(tt.ratings)
			assert.Equal(t, tt.want.ReviewCount, got.ReviewCount)
			assert.InDelta(t, tt.want.AverageRating, got.AverageRating, 1e-9)
		})
	}
}

func TestRatingSummary_SameAggregate(t *testing.T) {
	a := RatingSummary{AverageRating: 4, ReviewCount: 2, Version: 3}

	assert.True(t, a.SameAggregate(RatingSummary{AverageRating: 4, ReviewCount: 2}))
	assert.False(t, a.SameAggregate(RatingSummary{AverageRating: 4, ReviewCount: 3, Version: 3}))
	assert.False(t, a.SameAggregate(RatingSummary{AverageRating: 3.5, ReviewCount: 2, Version: 3}))
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := fmt.Errorf("create: %w", NewValidationError("rating", "must be between 1 and 5"))

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "rating: must be between 1 and 5")
}

func TestRecomputationError_Unwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := &RecomputationError{ProductID: uuid.New(), Err: cause}

	assert.True(t, errors.Is(err, ErrRecomputation))
	assert.True(t, errors.Is(err, cause))
}
