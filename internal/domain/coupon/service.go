package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// CreateRequest holds the fields accepted when creating a coupon.
type CreateRequest struct {
	Code          string
	DiscountType  DiscountType
	Value         decimal.Decimal
	IsActive      *bool
	ExpiresAt     *time.Time
	UsageLimit    *int
	MinimumAmount *decimal.Decimal
}

// Preview is the result of checking a code against a subtotal without
// consuming it.
type Preview struct {
	Coupon   *Coupon
	Discount decimal.Decimal
	Final    decimal.Decimal
}

// Service manages coupons.
type Service struct {
	store     Store
	validator Validator
}

// NewService creates a new coupon Service.
func NewService(store Store, validator Validator) *Service {
	return &Service{store: store, validator: validator}
}

// NormalizeCode canonicalises a user supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create validates and persists a new coupon.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Coupon, error) {
	c := &Coupon{
		Code:          NormalizeCode(req.Code),
		DiscountType:  req.DiscountType,
		Value:         req.Value,
		IsActive:      true,
		ExpiresAt:     req.ExpiresAt,
		UsageLimit:    req.UsageLimit,
		MinimumAmount: req.MinimumAmount,
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, ErrDuplicateCode
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// List returns all coupons.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// Get returns a coupon by id.
func (s *Service) Get(ctx context.Context, id int64) (*Coupon, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get coupon")
	}
	return c, nil
}

// Preview validates code against subtotal and reports the discount it would
// grant. The coupon usage count is not touched.
func (s *Service) Preview(ctx context.Context, code string, subtotal decimal.Decimal) (*Preview, error) {
	if subtotal.IsNegative() {
		return nil, errors.Wrap(ErrInvalidCoupon, "subtotal must not be negative")
	}
	c, err := s.validator.Validate(ctx, NormalizeCode(code), subtotal)
	if err != nil {
		return nil, err
	}
	discount := ComputeDiscount(c, subtotal)
	return &Preview{
		Coupon:   c,
		Discount: discount,
		Final:    subtotal.Sub(discount),
	}, nil
}

// Validate checks the static constraints of a coupon definition.
func Validate(c *Coupon) error {
	switch {
	case c.Code == "":
		return errors.Wrap(ErrInvalidCoupon, "code is required")
	case !c.DiscountType.Valid():
		return errors.Wrapf(ErrInvalidCoupon, "unknown discount type %q", c.DiscountType)
	case c.Value.IsNegative():
		return errors.Wrap(ErrInvalidCoupon, "discount value must not be negative")
	case !c.Value.Equal(c.Value.Round(2)):
		return errors.Wrap(ErrInvalidCoupon, "discount value must have at most 2 decimal places")
	case c.DiscountType == DiscountPercentage && c.Value.GreaterThan(hundred):
		return errors.Wrap(ErrInvalidCoupon, "percentage discount must not exceed 100")
	case c.UsageLimit != nil && *c.UsageLimit < 1:
		return errors.Wrap(ErrInvalidCoupon, "usage limit must be at least 1")
	case c.MinimumAmount != nil && c.MinimumAmount.IsNegative():
		return errors.Wrap(ErrInvalidCoupon, "minimum amount must not be negative")
	case c.MinimumAmount != nil && !c.MinimumAmount.Equal(c.MinimumAmount.Round(2)):
		return errors.Wrap(ErrInvalidCoupon, "minimum amount must have at most 2 decimal places")
	}
	return nil
}
