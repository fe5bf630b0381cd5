package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_engine/internal/domain"
)

// ProductRepository implements domain.ProductRepository in memory
type ProductRepository struct {
	store *Store
}

// Create creates a new product
func (r *ProductRepository) Create(_ context.Context, product *domain.Product) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	product.ID = uuid.New()
	product.AverageRating = 0
	product.ReviewCount = 0
	product.Version = 1
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = copyProduct(product)
	return nil
}

// GetByID retrieves a product by ID
func (r *ProductRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok || p.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	return copyProduct(p), nil
}

// GetRatingSummary retrieves the stored rating aggregate of a product
func (r *ProductRepository) GetRatingSummary(ctx context.Context, id uuid.UUID) (*domain.RatingSummary, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := p.Summary()
	return &summary, nil
}

// List retrieves a paginated list of products, newest first
func (r *ProductRepository) List(_ context.Context, limit, offset int) ([]*domain.Product, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []*domain.Product
	for _, p := range s.products {
		if p.DeletedAt == nil {
			products = append(products, copyProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return page(products, limit, offset), nil
}

// Update updates an existing product using optimistic locking on Version
func (r *ProductRepository) Update(_ context.Context, product *domain.Product) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.products[product.ID]
	if !ok || stored.DeletedAt != nil || stored.Version != product.Version {
		return domain.ErrConflict
	}

	stored.Name = product.Name
	stored.Description = product.Description
	stored.Price = product.Price
	stored.Version++
	stored.UpdatedAt = s.now()

	product.Version = stored.Version
	product.UpdatedAt = stored.UpdatedAt
	return nil
}

// Delete soft-deletes a product
func (r *ProductRepository) Delete(_ context.Context, id uuid.UUID) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok || p.DeletedAt != nil {
		return domain.ErrNotFound
	}
	now := s.now()
	p.DeletedAt = &now
	return nil
}

// Count returns the number of live products
func (r *ProductRepository) Count(_ context.Context) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.products {
		if p.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}
