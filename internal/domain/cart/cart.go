package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrNotFound is returned when a cart line does not exist for the user.
	ErrNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned when a quantity is outside [1, MaxQuantity].
	ErrInvalidQuantity = errors.Errorf("quantity must be between 1 and %d", MaxQuantity)
)

// MaxQuantity bounds a single line's quantity.
const MaxQuantity = 9999

// Item is a single (user, product, quantity) cart entry.
type Item struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line is a cart item with its product resolved at read time.
type Line struct {
	Item
	Product product.Product
}

// Total returns the line price at the product's current price.
func (l Line) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums the line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Repository persists cart items. Every method is scoped by user id.
type Repository interface {
	// Add inserts a line or merges qty into the existing line for the product.
	Add(ctx context.Context, userID, productID int64, qty int) (*Item, error)
	Lines(ctx context.Context, userID int64) ([]Line, error)
	UpdateQuantity(ctx context.Context, userID, itemID int64, qty int) (*Item, error)
	Remove(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
}
