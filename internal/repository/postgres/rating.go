package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Pesokrava/review_engine/internal/domain"
)

// RatingRepository implements domain.AggregateStore for PostgreSQL
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository creates a new PostgreSQL rating aggregate repository
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// RecomputeAggregate re-derives a product's average rating and review count from every
// approved review and overwrites the stored aggregate. The whole read-compute-write runs
// in one transaction holding a per-product advisory lock, so recomputes issued by
// different processes for the same product are applied one at a time and the last
// writer always wrote a fresh read. The returned rating version follows commit order.
func (r *RatingRepository) RecomputeAggregate(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, productID.String()); err != nil {
		return nil, fmt.Errorf("failed to acquire product lock: %w", err)
	}

	var ratings []int
	ratingsQuery := `
		SELECT rating
		FROM reviews
		WHERE product_id = $1 AND is_approved AND deleted_at IS NULL
	`
	if err := tx.SelectContext(ctx, &ratings, ratingsQuery, productID); err != nil {
		return nil, fmt.Errorf("failed to read approved ratings: %w", err)
	}

	summary := domain.CalculateSummary(ratings)

	// The client-facing optimistic lock column stays untouched: the aggregate is not client-editable.
	updateQuery := `
		UPDATE products
		SET average_rating = $1, review_count = $2, updated_at = $3, rating_version = rating_version + 1
		WHERE id = $4 AND deleted_at IS NULL
		RETURNING rating_version
	`
	err = tx.QueryRowxContext(ctx, updateQuery, summary.AverageRating, summary.ReviewCount, time.Now(), productID).
		Scan(&summary.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update product rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rating update: %w", err)
	}

	return &summary, nil
}

// ListStaleProducts returns products whose stored aggregate no longer matches their approved reviews
func (r *RatingRepository) ListStaleProducts(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT p.id
		FROM products p
		LEFT JOIN (
			SELECT product_id, AVG(rating)::double precision AS avg_rating, COUNT(*) AS cnt
			FROM reviews
			WHERE is_approved AND deleted_at IS NULL
			GROUP BY product_id
		) agg ON agg.product_id = p.id
		WHERE p.deleted_at IS NULL
			AND (
				p.review_count <> COALESCE(agg.cnt, 0)
				OR abs(p.average_rating - COALESCE(agg.avg_rating, 0)) > 1e-9
			)
		ORDER BY p.updated_at ASC
		LIMIT $1
	`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale products: %w", err)
	}

	return ids, nil
}
