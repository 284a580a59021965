package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
)

type recordingProducts struct {
	names []string
	dup   string
}

func (r *recordingProducts) Create(_ context.Context, req product.CreateRequest) (*product.Product, error) {
	if req.Name == r.dup {
		return nil, errors.Wrap(product.ErrDuplicateName, "create product")
	}
	r.names = append(r.names, req.Name)
	return &product.Product{ID: int64(len(r.names)), Name: req.Name}, nil
}

type recordingCoupons struct {
	reqs []coupon.CreateRequest
	err  error
}

func (r *recordingCoupons) Create(_ context.Context, req coupon.CreateRequest) (*coupon.Coupon, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.reqs = append(r.reqs, req)
	return &coupon.Coupon{ID: int64(len(r.reqs)), Code: req.Code}, nil
}

func TestReadSeedFiles(t *testing.T) {
	products, err := readJSON[productJSON]("../../db/seed/products.json")
	require.NoError(t, err)
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.NotEmpty(t, p.Name)
		assert.True(t, p.Price.IsPositive(), p.Name)
	}

	coupons, err := readJSON[couponJSON]("../../db/seed/coupons.json")
	require.NoError(t, err)
	require.NotEmpty(t, coupons)
	for _, c := range coupons {
		assert.True(t, coupon.DiscountType(c.DiscountType).Valid(), c.Code)
	}
}

func TestReadJSON_MissingFile(t *testing.T) {
	_, err := readJSON[productJSON]("does-not-exist.json")
	require.Error(t, err)
}

func TestSeedProducts_SkipsDuplicates(t *testing.T) {
	svc := &recordingProducts{dup: "Canvas Tote"}

	err := seedProducts(context.Background(), svc, []productJSON{
		{Name: "Linen Shirt"},
		{Name: "Canvas Tote"},
		{Name: "Wool Beanie"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Linen Shirt", "Wool Beanie"}, svc.names)
}

func TestSeedCoupons(t *testing.T) {
	coupons, err := readJSON[couponJSON]("../../db/seed/coupons.json")
	require.NoError(t, err)

	svc := &recordingCoupons{}
	require.NoError(t, seedCoupons(context.Background(), svc, coupons))
	require.Len(t, svc.reqs, len(coupons))
	assert.Equal(t, coupon.DiscountPercentage, svc.reqs[0].DiscountType)

	svc = &recordingCoupons{err: coupon.ErrInvalidCoupon}
	err = seedCoupons(context.Background(), svc, coupons)
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
}

type emptyCatalog struct{}

func (emptyCatalog) List(context.Context) ([]product.Product, error) { return nil, nil }

func (emptyCatalog) GetByID(context.Context, int64) (*product.Product, error) {
	return nil, product.ErrNotFound
}

// memStore assigns id 9 to every created product.
type memStore struct{ emptyCatalog }

func (*memStore) Create(_ context.Context, p *product.Product) error {
	p.ID = 9
	return nil
}

func (*memStore) Update(context.Context, *product.Product) error { return nil }
func (*memStore) Delete(context.Context, int64) error { return nil }

func TestNewInvalidator(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		inv, closeFn, err := newInvalidator("", emptyCatalog{})
		require.NoError(t, err)
		assert.IsType(t, nopInvalidator{}, inv)
		require.NoError(t, closeFn())
	})

	t.Run("clears a running server's catalog cache", func(t *testing.T) {
		mr := miniredis.RunT(t)
		require.NoError(t, mr.Set("products:all", "[]"))
		require.NoError(t, mr.Set("products:9", "{}"))
		require.NoError(t, mr.Set("products:5", "{}"))

		inv, closeFn, err := newInvalidator("redis://"+mr.Addr(), emptyCatalog{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = closeFn() })

		svc := product.NewService(&memStore{}, inv)
		_, err = svc.Create(context.Background(), product.CreateRequest{Name: "Poster", Price: decimal.NewFromInt(7)})
		require.NoError(t, err)

		assert.False(t, mr.Exists("products:all"))
		assert.False(t, mr.Exists("products:9"))
		assert.True(t, mr.Exists("products:5"))
	})

	t.Run("bad url", func(t *testing.T) {
		_, _, err := newInvalidator("not a url", emptyCatalog{})
		require.Error(t, err)
	})
}
