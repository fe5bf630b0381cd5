package domain

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Review field limits
const (
	MaxTitleLength    = 100
	MaxBodyLength     = 1000
	MaxResponseLength = 1000
	MaxImages         = 10
	MinRating         = 1
	MaxRating         = 5
)

// ReviewImage references an image hosted elsewhere
type ReviewImage struct {
	URL     string `json:"url" validate:"required,max=2048,http_url"`
	AltText string `json:"alt_text" validate:"max=200"`
}

// ReviewImages is stored as a JSONB column
type ReviewImages []ReviewImage

// Value implements driver.Valuer
func (i ReviewImages) Value() (driver.Value, error) {
	if i == nil {
		return "[]", nil
	}
	b, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (i *ReviewImages) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*i = ReviewImages{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for review images: %T", src)
	}
	return json.Unmarshal(data, i)
}

// ModeratorResponse is the single admin reply attached to a review
type ModeratorResponse struct {
	Text        string    `json:"text"`
	AdminID     uuid.UUID `json:"admin_id"`
	RespondedAt time.Time `json:"responded_at"`
}

// Review represents a product review in the system
type Review struct {
	ID               uuid.UUID          `json:"id" db:"id"`
	ProductID        uuid.UUID          `json:"product_id" db:"product_id" validate:"required"`
	AuthorID         uuid.UUID          `json:"author_id" db:"author_id" validate:"required"`
	Title            string             `json:"title" db:"title" validate:"required,max=100"`
	Body             string             `json:"body" db:"body" validate:"required,max=1000"`
	Rating           int                `json:"rating" db:"rating" validate:"required,min=1,max=5"`
	IsApproved       bool               `json:"is_approved" db:"is_approved"`
	VerifiedPurchase bool               `json:"verified_purchase" db:"verified_purchase"`
	Images           ReviewImages       `json:"images" db:"images" validate:"max=10,dive"`
	Likes            []uuid.UUID        `json:"likes"`
	Dislikes         []uuid.UUID        `json:"dislikes"`
	HelpfulCount     int                `json:"helpful_count" db:"helpful_count"`
	Response         *ModeratorResponse `json:"response,omitempty"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time         `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Ledger returns the review's vote sets
func (r *Review) Ledger() VoteLedger {
	return VoteLedger{Likes: r.Likes, Dislikes: r.Dislikes}
}

// ApplyLedger replaces the vote sets and re-derives the helpful count
func (r *Review) ApplyLedger(l VoteLedger) {
	r.Likes = l.Likes
	r.Dislikes = l.Dislikes
	r.HelpfulCount = l.HelpfulCount()
}

// ReviewUpdate holds the author-editable fields; nil means unchanged
type ReviewUpdate struct {
	Title  *string
	Body   *string
	Rating *int
	Images *ReviewImages
}

// Empty reports whether the update changes nothing
func (u ReviewUpdate) Empty() bool {
	return u.Title == nil && u.Body == nil && u.Rating == nil && u.Images == nil
}

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	// Create creates a new review; ErrAlreadyExists if the author already reviewed the product
	Create(ctx context.Context, review *Review) error

	// GetByID retrieves a review by ID (excludes soft-deleted)
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)

	// ListApprovedByProductID retrieves approved reviews for a product, newest first
	ListApprovedByProductID(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*Review, error)

	// CountApprovedByProductID returns the number of approved reviews for a product
	CountApprovedByProductID(ctx context.Context, productID uuid.UUID) (int, error)

	// ListPending retrieves unapproved reviews, oldest first
	ListPending(ctx context.Context, limit, offset int) ([]*Review, error)

	// CountPending returns the number of unapproved reviews
	CountPending(ctx context.Context) (int, error)

	// ListByAuthorID retrieves the reviews written by a user, newest first
	ListByAuthorID(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]*Review, error)

	// Update persists the author-editable fields of a review and returns the stored row
	Update(ctx context.Context, review *Review) (*Review, error)

	// SetApproval sets the approval flag and returns the stored review
	SetApproval(ctx context.Context, id uuid.UUID, approved bool) (*Review, error)

	// SetResponse overwrites the moderator response and returns the stored review
	SetResponse(ctx context.Context, id uuid.UUID, response *ModeratorResponse) (*Review, error)

	// MarkVerifiedPurchase sets the verified purchase flag; it is never cleared
	MarkVerifiedPurchase(ctx context.Context, id uuid.UUID) (*Review, error)

	// ApplyVote atomically applies a vote toggle against the persisted vote sets
	ApplyVote(ctx context.Context, id, voterID uuid.UUID, action VoteAction) (*Review, error)

	// Delete soft-deletes a review and returns the row as it was when deleted
	Delete(ctx context.Context, id uuid.UUID) (*Review, error)
}
