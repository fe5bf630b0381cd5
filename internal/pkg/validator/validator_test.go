package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pesokrava/review_engine/internal/domain"
)

func validReview() *domain.Review {
	return &domain.Review{
		ProductID: uuid.New(),
		AuthorID:  uuid.New(),
		Title:     "Solid",
		Body:      "Does what it says.",
		Rating:    4,
	}
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(validReview()))
}

func TestStruct_FieldMessages(t *testing.T) {
	r := validReview()
	r.Title = strings.Repeat("x", domain.MaxTitleLength+1)
	r.Body = ""
	r.Rating = 6
	r.Images = domain.ReviewImages{{URL: "ftp://example.com/a.png"}}

	err := Struct(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be at most 100 characters", verr.Fields["title"])
	assert.Equal(t, "is required", verr.Fields["body"])
	assert.Equal(t, "must be at most 5", verr.Fields["rating"])
	assert.Equal(t, "must be an absolute http(s) URL", verr.Fields["images[0].url"])
}

func TestStruct_LengthCountsCharactersNotBytes(t *testing.T) {
	r := validReview()
	r.Title = strings.Repeat("é", domain.MaxTitleLength)

	assert.NoError(t, Struct(r))
}

func TestStruct_TooManyImages(t *testing.T) {
	r := validReview()
	for i := 0; i <= domain.MaxImages; i++ {
		r.Images = append(r.Images, domain.ReviewImage{URL: "https://cdn.example.com/a.png"})
	}

	err := Struct(r)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must contain at most 10 items", verr.Fields["images"])
}
