package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	couponColumns = `id, code, discount_type, discount_value, is_active, expires_at,
		usage_limit, usage_count, minimum_amount, created_at, updated_at`

	findCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = UPPER($1)`

	getCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, id DESC`

	createCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, is_active, expires_at, usage_limit, minimum_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, usage_count, created_at, updated_at`

	importCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, is_active, expires_at, usage_limit, minimum_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING`

	incrementCouponUsageSQL = `UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1`
)

var (
	_ coupon.Repository = (*CouponRepository)(nil)
	_ coupon.Store      = (*CouponRepository)(nil)
)

// CouponRepository implements coupon.Repository and coupon.Store backed by
// PostgreSQL.
type CouponRepository struct {
	db   dbtx
	lock bool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{db: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive). Inside an
// order transaction the row is locked so that concurrent placements see
// each other's usage increments. Returns coupon.ErrNotFound when no row
// matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	query := findCouponByCodeSQL
	if r.lock {
		query += ` FOR UPDATE`
	}
	c, err := scanCoupon(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUsage atomically adds one to the coupon's usage count.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage of coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Create inserts c and fills its generated fields. Returns
// coupon.ErrDuplicateCode when the code is taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.db.QueryRow(ctx, createCouponSQL,
		c.Code, string(c.DiscountType), c.Value, c.IsActive, c.ExpiresAt, c.UsageLimit, c.MinimumAmount,
	).Scan(&c.ID, &c.UsageCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isPgError(err, uniqueViolation) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Import inserts coupons in a single batch, leaving existing codes untouched.
// It returns the number of rows actually inserted.
func (r *CouponRepository) Import(ctx context.Context, coupons []coupon.Coupon) (int64, error) {
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(importCouponSQL,
			c.Code, string(c.DiscountType), c.Value, c.IsActive, c.ExpiresAt, c.UsageLimit, c.MinimumAmount,
		)
	}
	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for _, c := range coupons {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("importing coupon %q: %w", c.Code, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// List returns all coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	defer rows.Close()

	coupons := make([]coupon.Coupon, 0)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning coupon row: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating coupon rows: %w", err)
	}

	return coupons, nil
}

// GetByID returns a coupon by id.
func (r *CouponRepository) GetByID(ctx context.Context, id int64) (*coupon.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRow(ctx, getCouponSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %d: %w", id, err)
	}
	return &c, nil
}

func scanCoupon(row pgx.Row) (coupon.Coupon, error) {
	var (
		c   coupon.Coupon
		typ string
	)
	err := row.Scan(
		&c.ID, &c.Code, &typ, &c.Value, &c.IsActive, &c.ExpiresAt,
		&c.UsageLimit, &c.UsageCount, &c.MinimumAmount, &c.CreatedAt, &c.UpdatedAt,
	)
	c.DiscountType = coupon.DiscountType(typ)
	return c, err
}
