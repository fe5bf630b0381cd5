package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Pesokrava/review_engine/internal/domain"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

const reviewColumns = `id, product_id, author_id, title, body, rating, is_approved, verified_purchase,
	images, likes, dislikes, helpful_count, response_text, response_admin_id, responded_at,
	created_at, updated_at, deleted_at`

// reviewRow mirrors the reviews table; vote sets come back as text arrays
type reviewRow struct {
	ID               uuid.UUID           `db:"id"`
	ProductID        uuid.UUID           `db:"product_id"`
	AuthorID         uuid.UUID           `db:"author_id"`
	Title            string              `db:"title"`
	Body             string              `db:"body"`
	Rating           int                 `db:"rating"`
	IsApproved       bool                `db:"is_approved"`
	VerifiedPurchase bool                `db:"verified_purchase"`
	Images           domain.ReviewImages `db:"images"`
	Likes            pq.StringArray      `db:"likes"`
	Dislikes         pq.StringArray      `db:"dislikes"`
	HelpfulCount     int                 `db:"helpful_count"`
	ResponseText     sql.NullString      `db:"response_text"`
	ResponseAdminID  uuid.NullUUID       `db:"response_admin_id"`
	RespondedAt      sql.NullTime        `db:"responded_at"`
	CreatedAt        time.Time           `db:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at"`
	DeletedAt        *time.Time          `db:"deleted_at"`
}

func (row *reviewRow) toDomain() (*domain.Review, error) {
	likes, err := parseUUIDs(row.Likes)
	if err != nil {
		return nil, fmt.Errorf("review %s likes: %w", row.ID, err)
	}
	dislikes, err := parseUUIDs(row.Dislikes)
	if err != nil {
		return nil, fmt.Errorf("review %s dislikes: %w", row.ID, err)
	}

	review := &domain.Review{
		ID:               row.ID,
		ProductID:        row.ProductID,
		AuthorID:         row.AuthorID,
		Title:            row.Title,
		Body:             row.Body,
		Rating:           row.Rating,
		IsApproved:       row.IsApproved,
		VerifiedPurchase: row.VerifiedPurchase,
		Images:           row.Images,
		Likes:            likes,
		Dislikes:         dislikes,
		HelpfulCount:     row.HelpfulCount,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		DeletedAt:        row.DeletedAt,
	}
	if review.Images == nil {
		review.Images = domain.ReviewImages{}
	}

	if row.ResponseText.Valid {
		review.Response = &domain.ModeratorResponse{
			Text:        row.ResponseText.String,
			AdminID:     row.ResponseAdminID.UUID,
			RespondedAt: row.RespondedAt.Time,
		}
	}

	return review, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func toDomainReviews(rows []reviewRow) ([]*domain.Review, error) {
	reviews := make([]*domain.Review, 0, len(rows))
	for i := range rows {
		review, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// ReviewRepository implements domain.ReviewRepository for PostgreSQL
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new PostgreSQL review repository
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create creates a new review
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	// Return domain.ErrNotFound instead of cryptic foreign key constraint violation
	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1 AND deleted_at IS NULL)`
	if err := r.db.GetContext(ctx, &exists, checkQuery, review.ProductID); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}

	query := `
		INSERT INTO reviews (product_id, author_id, title, body, rating, is_approved, verified_purchase, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, helpful_count, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx,
		query,
		review.ProductID,
		review.AuthorID,
		review.Title,
		review.Body,
		review.Rating,
		review.IsApproved,
		review.VerifiedPurchase,
		review.Images,
	).Scan(
		&review.ID,
		&review.HelpfulCount,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return domain.ErrAlreadyExists
			case pqForeignKeyViolation:
				return domain.ErrNotFound
			}
		}
		return err
	}

	review.Likes = []uuid.UUID{}
	review.Dislikes = []uuid.UUID{}
	return nil
}

// GetByID retrieves a review by ID
func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE id = $1 AND deleted_at IS NULL
	`

	var row reviewRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return row.toDomain()
}

// ListApprovedByProductID retrieves approved reviews for a product, newest first
func (r *ReviewRepository) ListApprovedByProductID(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, error) {
	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE product_id = $1 AND is_approved AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, query, productID, limit, offset); err != nil {
		return nil, err
	}

	return toDomainReviews(rows)
}

// CountApprovedByProductID returns the number of approved reviews for a product
func (r *ReviewRepository) CountApprovedByProductID(ctx context.Context, productID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM reviews WHERE product_id = $1 AND is_approved AND deleted_at IS NULL`

	var count int
	if err := r.db.GetContext(ctx, &count, query, productID); err != nil {
		return 0, err
	}

	return count, nil
}

// ListPending retrieves the moderation queue, oldest first
func (r *ReviewRepository) ListPending(ctx context.Context, limit, offset int) ([]*domain.Review, error) {
	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE NOT is_approved AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`

	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, err
	}

	return toDomainReviews(rows)
}

// CountPending returns the size of the moderation queue
func (r *ReviewRepository) CountPending(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM reviews WHERE NOT is_approved AND deleted_at IS NULL`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, err
	}

	return count, nil
}

// ListByAuthorID retrieves the reviews written by a user, newest first
func (r *ReviewRepository) ListByAuthorID(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]*domain.Review, error) {
	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE author_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, query, authorID, limit, offset); err != nil {
		return nil, err
	}

	return toDomainReviews(rows)
}

// Update persists the author-editable fields of a review and returns the row as written,
// including approval and vote state changed by other writers since the caller's read
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	query := `
		UPDATE reviews
		SET title = $1, body = $2, rating = $3, images = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
		RETURNING ` + reviewColumns

	return r.updateReturning(ctx, query, review.Title, review.Body, review.Rating, review.Images, time.Now(), review.ID)
}

// SetApproval sets the approval flag
func (r *ReviewRepository) SetApproval(ctx context.Context, id uuid.UUID, approved bool) (*domain.Review, error) {
	query := `
		UPDATE reviews
		SET is_approved = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING ` + reviewColumns

	return r.updateReturning(ctx, query, approved, time.Now(), id)
}

// SetResponse overwrites the moderator response of a review
func (r *ReviewRepository) SetResponse(ctx context.Context, id uuid.UUID, response *domain.ModeratorResponse) (*domain.Review, error) {
	query := `
		UPDATE reviews
		SET response_text = $1, response_admin_id = $2, responded_at = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL
		RETURNING ` + reviewColumns

	return r.updateReturning(ctx, query, response.Text, response.AdminID, response.RespondedAt, time.Now(), id)
}

// MarkVerifiedPurchase sets verified_purchase; the column is never reset to false
func (r *ReviewRepository) MarkVerifiedPurchase(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	query := `
		UPDATE reviews
		SET verified_purchase = TRUE,
			updated_at = CASE WHEN verified_purchase THEN updated_at ELSE $1 END
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING ` + reviewColumns

	return r.updateReturning(ctx, query, time.Now(), id)
}

func (r *ReviewRepository) updateReturning(ctx context.Context, query string, args ...any) (*domain.Review, error) {
	var row reviewRow
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return row.toDomain()
}

// ApplyVote applies a vote toggle as one read-modify-write under a row lock,
// so concurrent voters on the same review serialize against the persisted sets.
func (r *ReviewRepository) ApplyVote(ctx context.Context, id, voterID uuid.UUID, action domain.VoteAction) (*domain.Review, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`

	var row reviewRow
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	review, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	review.ApplyLedger(review.Ledger().Apply(voterID, action))

	updateQuery := `
		UPDATE reviews
		SET likes = $1, dislikes = $2, helpful_count = $3, updated_at = $4
		WHERE id = $5
		RETURNING updated_at
	`

	err = tx.QueryRowxContext(
		ctx,
		updateQuery,
		pq.Array(uuidStrings(review.Likes)),
		pq.Array(uuidStrings(review.Dislikes)),
		review.HelpfulCount,
		time.Now(),
		review.ID,
	).Scan(&review.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}

	return review, nil
}

// Delete soft-deletes a review and returns it as it was at deletion
func (r *ReviewRepository) Delete(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	query := `
		UPDATE reviews
		SET deleted_at = $1
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING ` + reviewColumns

	return r.updateReturning(ctx, query, time.Now(), id)
}
