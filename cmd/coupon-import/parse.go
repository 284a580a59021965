package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
)

var header = []string{"code", "discount_type", "discount_value", "minimum_amount", "usage_limit", "expires_at"}

const (
	colCode = iota
	colType
	colValue
	colMinimum
	colLimit
	colExpires
)

// streamFile decodes the gzip-compressed CSV at path and calls fn for each
// data row with its 1-based line number.
func streamFile(ctx context.Context, path string, fn func(line int, record []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = len(header)
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	first, err := r.Read()
	if err != nil {
		return errors.Wrapf(err, "read header of %s", path)
	}
	if !slices.Equal(normalizeHeader(first), header) {
		return errors.Errorf("%s: unexpected header %q", path, first)
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if err := fn(line, record); err != nil {
			return err
		}
	}
}

func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, v := range h {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// parseRecord converts a CSV row into a coupon. Empty optional columns map to
// nil. Imported coupons are active.
func parseRecord(record []string) (coupon.Coupon, error) {
	c := coupon.Coupon{
		Code:         coupon.NormalizeCode(record[colCode]),
		DiscountType: coupon.DiscountType(strings.ToLower(strings.TrimSpace(record[colType]))),
		IsActive:     true,
	}

	value, err := decimal.NewFromString(strings.TrimSpace(record[colValue]))
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(coupon.ErrInvalidCoupon, "discount_value is not a number")
	}
	c.Value = value

	if v := strings.TrimSpace(record[colMinimum]); v != "" {
		minimum, err := decimal.NewFromString(v)
		if err != nil {
			return coupon.Coupon{}, errors.Wrap(coupon.ErrInvalidCoupon, "minimum_amount is not a number")
		}
		c.MinimumAmount = &minimum
	}

	if v := strings.TrimSpace(record[colLimit]); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return coupon.Coupon{}, errors.Wrap(coupon.ErrInvalidCoupon, "usage_limit is not an integer")
		}
		c.UsageLimit = &limit
	}

	if v := strings.TrimSpace(record[colExpires]); v != "" {
		expires, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return coupon.Coupon{}, errors.Wrap(coupon.ErrInvalidCoupon, "expires_at is not RFC 3339")
		}
		c.ExpiresAt = &expires
	}

	if err := coupon.Validate(&c); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}
