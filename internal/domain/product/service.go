package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidProduct is returned when a create or update request fails validation.
var ErrInvalidProduct = errors.New("invalid product")

// Invalidator drops cached copies of catalog entries.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...int64)
}

// CreateRequest holds the input for creating a product.
type CreateRequest struct {
	Name        string
	Description string
	Price       decimal.Decimal
	IsActive    *bool
	CategoryID  *int64
	BrandID     *int64
}

// UpdateRequest holds a partial product update; nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	IsActive    *bool
	CategoryID  *int64
	BrandID     *int64
}

// Service implements catalog writes. Every mutation invalidates the cache
// before returning, so reads through this service never observe a value older
// than its own writes.
type Service struct {
	store Store
	cache Invalidator
}

// NewService creates a catalog Service.
func NewService(store Store, cache Invalidator) *Service {
	return &Service{store: store, cache: cache}
}

// Create validates and persists a new product.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	p := &Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		IsActive:    true,
		CategoryID:  req.CategoryID,
		BrandID:     req.BrandID,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	s.cache.Invalidate(ctx, p.ID)
	return p, nil
}

// Update applies a partial update to an existing product.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Product, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.CategoryID != nil {
		p.CategoryID = req.CategoryID
	}
	if req.BrandID != nil {
		p.BrandID = req.BrandID
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	s.cache.Invalidate(ctx, id)
	return p, nil
}

// Delete removes a product from the catalog.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

func validate(p *Product) error {
	if p.Name == "" {
		return errors.Wrap(ErrInvalidProduct, "name is required")
	}
	if p.Price.IsNegative() {
		return errors.Wrap(ErrInvalidProduct, "price must not be negative")
	}
	if !p.Price.Equal(p.Price.Round(2)) {
		return errors.Wrap(ErrInvalidProduct, "price must have at most 2 decimal places")
	}
	return nil
}
