package product

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	"github.com/Pesokrava/review_engine/internal/pkg/sanitize"
	"github.com/Pesokrava/review_engine/internal/pkg/validator"
)

// RatingCache caches product rating summaries. SetRatingSummary must not replace a cached
// summary carrying the same or a newer Version.
type RatingCache interface {
	GetRatingSummary(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error)
	SetRatingSummary(ctx context.Context, productID uuid.UUID, summary *domain.RatingSummary) error
	InvalidateProduct(ctx context.Context, productID uuid.UUID) error
}

// Service handles product business logic
type Service struct {
	repo   domain.ProductRepository
	cache  RatingCache
	logger *logger.Logger
}

// NewService creates a new product service; cache may be nil
func NewService(repo domain.ProductRepository, cache RatingCache, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

// Create creates a new product
func (s *Service) Create(ctx context.Context, product *domain.Product) error {
	product.Name = sanitize.Text(product.Name)
	product.Description = sanitize.TextPtr(product.Description)

	if err := validator.Struct(product); err != nil {
		s.logger.Debugf("Product validation failed: %v", err)
		return err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", err)
		return err
	}

	s.logger.WithFields(map[string]any{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("Product created successfully")

	return nil
}

// GetByID retrieves a product by ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debugf("Product not found: %s", id)
		} else {
			s.logger.Error("Failed to get product", err)
		}
		return nil, err
	}

	return product, nil
}

// GetRatingSummary returns the product's rating aggregate, served from cache when possible.
// A miss refills the cache with the version just read; the cache keeps the highest version
// it has seen, so a fill racing a recompute cannot replace the recompute's fresher value.
func (s *Service) GetRatingSummary(ctx context.Context, id uuid.UUID) (*domain.RatingSummary, error) {
	if s.cache != nil {
		summary, err := s.cache.GetRatingSummary(ctx, id)
		if err == nil {
			s.logger.Debugf("Cache hit for product %s rating", id)
			return summary, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warnf("Failed to read cached rating for product %s: %v", id, err)
		}
	}

	summary, err := s.repo.GetRatingSummary(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debugf("Product not found: %s", id)
		} else {
			s.logger.Error("Failed to get product rating", err)
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRatingSummary(ctx, id, summary); err != nil {
			s.logger.Warnf("Failed to cache rating for product %s: %v", id, err)
		}
	}

	return summary, nil
}

// List retrieves a paginated list of products
func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.Product, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	products, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list products", err)
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Error("Failed to count products", err)
		return nil, 0, err
	}

	return products, total, nil
}

// Update updates an existing product; the rating aggregate is never touched here
func (s *Service) Update(ctx context.Context, product *domain.Product) error {
	product.Name = sanitize.Text(product.Name)
	product.Description = sanitize.TextPtr(product.Description)

	if err := validator.Struct(product); err != nil {
		s.logger.Debugf("Product validation failed: %v", err)
		return err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		s.logger.Error("Failed to update product", err)
		return err
	}

	s.logger.WithFields(map[string]any{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("Product updated successfully")

	return nil
}

// Delete soft-deletes a product
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("Failed to delete product", err)
		}
		return err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProduct(ctx, id); err != nil {
			s.logger.Warnf("Failed to invalidate cache for product %s: %v", id, err)
		}
	}

	s.logger.WithFields(map[string]any{
		"product_id": id,
	}).Info("Product deleted successfully")

	return nil
}
