package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
)

// Status is the fulfilment state of an order.
type Status string

// Order statuses. pending → processing → shipped → delivered, with
// cancelled reachable from any non-terminal status.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	// ErrEmptyCart is returned when placing an order from an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound is returned when the order does not exist or belongs to another user.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidTransition is returned when the status machine forbids a move.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrInvalidPaymentIntent is returned for an empty payment intent reference.
	ErrInvalidPaymentIntent = errors.New("payment intent id is required")
)

// ProductUnavailableError indicates a cart line references an inactive product.
type ProductUnavailableError struct {
	ProductID int64
	Name      string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %q is no longer available", e.Name)
}

// Line is an immutable snapshot of a purchased product.
type Line struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Total returns quantity × unit price.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a placed order with its line snapshots.
type Order struct {
	ID              int64
	UserID          int64
	Lines           []Line
	TotalAmount     decimal.Decimal
	DiscountAmount  decimal.Decimal
	FinalAmount     decimal.Decimal
	CouponID        *int64
	Coupon          *coupon.Coupon
	Status          Status
	ShippingAddress *string
	PaymentIntentID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store persists orders. Reads scoped by user filter on user id in the query.
type Store interface {
	// Create inserts the order and its lines, filling generated ids and timestamps.
	Create(ctx context.Context, o *Order) error
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	GetByUser(ctx context.Context, userID, orderID int64) (*Order, error)
	GetByID(ctx context.Context, orderID int64) (*Order, error)
	// UpdateStatus moves the order from one status to another. It returns
	// ErrInvalidTransition when the order is no longer in status from.
	UpdateStatus(ctx context.Context, orderID int64, from, to Status) error
	SetPaymentIntent(ctx context.Context, orderID int64, intentID string) error
}

// CartStore is the cart access needed while placing an order.
type CartStore interface {
	// LockLines reads the user's cart lines and locks them until the
	// transaction ends.
	LockLines(ctx context.Context, userID int64) ([]cart.Line, error)
	// RemoveLines deletes the given lines of the user's cart. Lines added
	// after LockLines are not touched.
	RemoveLines(ctx context.Context, userID int64, itemIDs []int64) error
}

// Tx exposes repositories bound to a single transaction.
type Tx interface {
	Carts() CartStore
	Coupons() coupon.Repository
	Orders() Store
}

// UnitOfWork runs fn in a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
