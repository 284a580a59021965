package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// Service manages user carts.
type Service struct {
	repo     Repository
	products product.Repository
}

// NewService creates a cart Service. products is used to check that added
// products exist and is expected to be the cached catalog.
func NewService(repo Repository, products product.Repository) *Service {
	return &Service{repo: repo, products: products}
}

// AddToCart adds qty of a product to the user's cart, merging with an
// existing line. Availability is not checked here; it is enforced when the
// order is placed.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, qty int) (*Item, error) {
	if qty < 1 || qty > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}

	item, err := s.repo.Add(ctx, userID, productID, qty)
	if err != nil {
		return nil, errors.Wrap(err, "add cart item")
	}
	return item, nil
}

// Snapshot returns the user's cart lines with current product data.
// An empty cart yields an empty slice.
func (s *Service) Snapshot(ctx context.Context, userID int64) ([]Line, error) {
	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if lines == nil {
		lines = []Line{}
	}
	return lines, nil
}

// UpdateQuantity sets the quantity of one of the user's cart lines.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID int64, qty int) (*Item, error) {
	if qty < 1 || qty > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	item, err := s.repo.UpdateQuantity(ctx, userID, itemID, qty)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "update cart item")
	}
	return item, nil
}

// Remove deletes one of the user's cart lines.
func (s *Service) Remove(ctx context.Context, userID, itemID int64) error {
	if err := s.repo.Remove(ctx, userID, itemID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "remove cart item")
	}
	return nil
}

// Clear removes every line from the user's cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
