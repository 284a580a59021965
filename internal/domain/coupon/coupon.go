package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrNotFound is returned when no coupon matches the code or id.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been disabled.
	ErrInactive = errors.New("coupon is not active")
	// ErrExpired is returned when the coupon expiry has passed.
	ErrExpired = errors.New("coupon has expired")
	// ErrLimitReached is returned when the coupon has exhausted its allowed uses.
	ErrLimitReached = errors.New("coupon usage limit reached")
	// ErrBelowMinimum is returned when the order subtotal is under the coupon minimum.
	ErrBelowMinimum = errors.New("order below coupon minimum amount")
	// ErrDuplicateCode is returned when creating a coupon whose code is taken.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrInvalidCoupon is returned when a create request fails validation.
	ErrInvalidCoupon = errors.New("invalid coupon")
)

// Coupon defines a discount and the constraints under which it applies.
type Coupon struct {
	ID            int64
	Code          string
	DiscountType  DiscountType
	Value         decimal.Decimal
	IsActive      bool
	ExpiresAt     *time.Time
	UsageLimit    *int
	UsageCount    int
	MinimumAmount *decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository provides the lookups and mutations used during order placement.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	IncrementUsage(ctx context.Context, id int64) error
}

// Store provides coupon administration.
type Store interface {
	Create(ctx context.Context, c *Coupon) error
	List(ctx context.Context) ([]Coupon, error)
	GetByID(ctx context.Context, id int64) (*Coupon, error)
}
