package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const csvHeader = "code,discount_type,discount_value,minimum_amount,usage_limit,expires_at\n"

func writeGz(t *testing.T, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(csvHeader + strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func codes(coupons []coupon.Coupon) []string {
	out := make([]string, len(coupons))
	for i, c := range coupons {
		out[i] = c.Code
	}
	return out
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  []string
		wantErr bool
		check   func(t *testing.T, c coupon.Coupon)
	}{
		{
			name:   "percentage with all columns",
			record: []string{" spring15 ", "Percentage", "15", "20.00", "100", "2030-01-01T00:00:00Z"},
			check: func(t *testing.T, c coupon.Coupon) {
				assert.Equal(t, "SPRING15", c.Code)
				assert.Equal(t, coupon.DiscountPercentage, c.DiscountType)
				assert.Equal(t, "15.00", c.Value.StringFixed(2))
				require.NotNil(t, c.MinimumAmount)
				assert.Equal(t, "20.00", c.MinimumAmount.StringFixed(2))
				require.NotNil(t, c.UsageLimit)
				assert.Equal(t, 100, *c.UsageLimit)
				require.NotNil(t, c.ExpiresAt)
				assert.Equal(t, 2030, c.ExpiresAt.Year())
				assert.True(t, c.IsActive)
			},
		},
		{
			name:   "fixed with optional columns empty",
			record: []string{"FIVEOFF", "fixed", "5.00", "", "", ""},
			check: func(t *testing.T, c coupon.Coupon) {
				assert.Nil(t, c.MinimumAmount)
				assert.Nil(t, c.UsageLimit)
				assert.Nil(t, c.ExpiresAt)
			},
		},
		{
			name:   "zero value",
			record: []string{"FREESHIP", "fixed", "0", "", "", ""},
			check: func(t *testing.T, c coupon.Coupon) {
				assert.True(t, c.Value.IsZero())
			},
		},
		{name: "bad value", record: []string{"X", "fixed", "five", "", "", ""}, wantErr: true},
		{name: "negative value", record: []string{"X", "fixed", "-1", "", "", ""}, wantErr: true},
		{name: "value with 3 decimals", record: []string{"X", "fixed", "10.555", "", "", ""}, wantErr: true},
		{name: "bad minimum", record: []string{"X", "fixed", "5", "lots", "", ""}, wantErr: true},
		{name: "bad limit", record: []string{"X", "fixed", "5", "", "1.5", ""}, wantErr: true},
		{name: "bad expiry", record: []string{"X", "fixed", "5", "", "", "tomorrow"}, wantErr: true},
		{name: "unknown type", record: []string{"X", "bogo", "5", "", "", ""}, wantErr: true},
		{name: "percentage above 100", record: []string{"X", "percentage", "150", "", "", ""}, wantErr: true},
		{name: "empty code", record: []string{" ", "fixed", "5", "", "", ""}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseRecord(tt.record)
			if tt.wantErr {
				require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestCollect_RejectsRepeatedCodes(t *testing.T) {
	a := writeGz(t, "a.csv.gz",
		"ALPHA,fixed,5,,,",
		"SHARED,percentage,10,,,",
		"TWICE,fixed,1,,,",
		"twice,fixed,2,,,",
	)
	b := writeGz(t, "b.csv.gz",
		"BRAVO,percentage,20,,,",
		"shared,fixed,3,,,",
		"BROKEN,fixed,not-a-number,,,",
	)
	c := writeGz(t, "c.csv.gz",
		"CHARLIE,fixed,7.50,30.00,5,",
	)

	res, err := collect(context.Background(), []string{a, b, c}, 100)
	require.NoError(t, err)

	assert.Equal(t, []string{"ALPHA", "BRAVO", "CHARLIE"}, codes(res.accepted))
	assert.Equal(t, []string{"SHARED", "TWICE"}, res.duplicates)
	assert.Equal(t, 1, res.invalid)
}

func TestCollect_SingleFile(t *testing.T) {
	path := writeGz(t, "only.csv.gz",
		"ONE,fixed,1,,,",
		"TWO,fixed,2,,,",
	)

	res, err := collect(context.Background(), []string{path}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ONE", "TWO"}, codes(res.accepted))
	assert.Empty(t, res.duplicates)
}

func TestStreamFile_RejectsUnexpectedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte("code,type,value,min,limit,expires\nX,fixed,1,,,\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	err = streamFile(context.Background(), path, func(int, []string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected header")
}

func TestStreamFile_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.csv.gz")
	require.NoError(t, os.WriteFile(path, []byte(csvHeader), 0o600))

	err := streamFile(context.Background(), path, func(int, []string) error { return nil })
	require.Error(t, err)
}

type fakeImporter struct {
	batches  [][]string
	existing map[string]bool
	err      error
}

func (f *fakeImporter) Import(_ context.Context, coupons []coupon.Coupon) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, codes(coupons))
	var n int64
	for _, c := range coupons {
		if !f.existing[c.Code] {
			n++
		}
	}
	return n, nil
}

func TestImportCoupons_Batches(t *testing.T) {
	imp := &fakeImporter{existing: map[string]bool{"B": true}}
	coupons := []coupon.Coupon{{Code: "A"}, {Code: "B"}, {Code: "C"}, {Code: "D"}, {Code: "E"}}

	inserted, err := importCoupons(context.Background(), imp, coupons, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), inserted)
	assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}, {"E"}}, imp.batches)
}

func TestImportCoupons_Error(t *testing.T) {
	imp := &fakeImporter{err: errors.New("connection refused")}

	_, err := importCoupons(context.Background(), imp, []coupon.Coupon{{Code: "A"}}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
