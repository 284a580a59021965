package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator validates a coupon code against an order subtotal.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, error)
}

// Option configures a RepoValidator.
type Option func(v *RepoValidator)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *RepoValidator) {
		if now != nil {
			v.now = now
		}
	}
}

// RepoValidator implements Validator by looking up coupons from a Repository.
// It never mutates the coupon; usage is incremented by the order transaction.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository, opts ...Option) *RepoValidator {
	v := &RepoValidator{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate looks up the coupon for code and checks it against subtotal.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if err := Check(c, subtotal, v.now()); err != nil {
		return nil, err
	}
	return c, nil
}

// Check applies the coupon rules in order and returns the first violation:
// active flag, expiry, usage limit, then minimum amount.
func Check(c *Coupon, subtotal decimal.Decimal, now time.Time) error {
	if !c.IsActive {
		return ErrInactive
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrLimitReached
	}
	if c.MinimumAmount != nil && subtotal.LessThan(*c.MinimumAmount) {
		return errors.Wrapf(ErrBelowMinimum, "minimum order amount of %s required", c.MinimumAmount.StringFixed(2))
	}
	return nil
}
