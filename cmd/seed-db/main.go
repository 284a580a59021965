package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	IsActive    *bool           `json:"is_active"`
	CategoryID  *int64          `json:"category_id"`
	BrandID     *int64          `json:"brand_id"`
}

type couponJSON struct {
	Code          string           `json:"code"`
	DiscountType  string           `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	IsActive      *bool            `json:"is_active"`
	ExpiresAt     *time.Time       `json:"expires_at"`
	UsageLimit    *int             `json:"usage_limit"`
	MinimumAmount *decimal.Decimal `json:"minimum_amount"`
}

// nopInvalidator is used when no Redis URL is given. A server already
// running against the same database keeps serving its cached catalog until
// the entries expire.
type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...int64) {}

// newInvalidator returns a catalog cache invalidator for redisURL, or a no-op
// one when redisURL is empty. The returned close func is never nil.
func newInvalidator(redisURL string, repo product.Repository) (product.Invalidator, func() error, error) {
	if redisURL == "" {
		return nopInvalidator{}, func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	catalog, err := product.NewCachedRepository(repo, cache.NewRedisStore(rdb), 0,
		zap.NewNop(), noop.NewMeterProvider().Meter("seed-db"))
	if err != nil {
		_ = rdb.Close()
		return nil, nil, errors.Wrap(err, "create catalog cache")
	}
	return catalog, rdb.Close, nil
}

func main() {
	var (
		databaseURL  string
		redisURL     string
		productsFile string
		couponsFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL of a running server's catalog cache to invalidate (or REDIS_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&couponsFile, "coupons-file", "db/seed/coupons.json", "path to coupons JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, redisURL, productsFile, couponsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, redisURL, productsFile, couponsFile string) error {
	products, err := readJSON[productJSON](productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}
	coupons, err := readJSON[couponJSON](couponsFile)
	if err != nil {
		return errors.Wrap(err, "read coupons")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	productRepo := postgres.NewProductRepository(pool)
	invalidator, closeCache, err := newInvalidator(redisURL, productRepo)
	if err != nil {
		return err
	}
	defer func() { _ = closeCache() }()

	productService := product.NewService(productRepo, invalidator)
	if err := seedProducts(ctx, productService, products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	couponRepo := postgres.NewCouponRepository(pool)
	couponService := coupon.NewService(couponRepo, coupon.NewRepoValidator(couponRepo))
	if err := seedCoupons(ctx, couponService, coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func readJSON[T any](path string) ([]T, error) {
	slog.Info("reading seed file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return items, nil
}

type productCreator interface {
	Create(ctx context.Context, req product.CreateRequest) (*product.Product, error)
}

// seedProducts creates every product, skipping names that already exist so
// the command can be rerun.
func seedProducts(ctx context.Context, svc productCreator, products []productJSON) error {
	slog.Info("creating products", slog.Int("count", len(products)))

	for _, p := range products {
		created, err := svc.Create(ctx, product.CreateRequest{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			IsActive:    p.IsActive,
			CategoryID:  p.CategoryID,
			BrandID:     p.BrandID,
		})
		switch {
		case errors.Is(err, product.ErrDuplicateName):
			slog.Info("product exists, skipping", slog.String("name", p.Name))
			continue
		case err != nil:
			return errors.Wrapf(err, "create product %q", p.Name)
		}

		slog.Info("created product", slog.Int64("id", created.ID), slog.String("name", created.Name))
	}

	return nil
}

type couponCreator interface {
	Create(ctx context.Context, req coupon.CreateRequest) (*coupon.Coupon, error)
}

// seedCoupons creates every coupon, skipping codes that already exist.
func seedCoupons(ctx context.Context, svc couponCreator, coupons []couponJSON) error {
	slog.Info("creating coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		created, err := svc.Create(ctx, coupon.CreateRequest{
			Code:          c.Code,
			DiscountType:  coupon.DiscountType(c.DiscountType),
			Value:         c.DiscountValue,
			IsActive:      c.IsActive,
			ExpiresAt:     c.ExpiresAt,
			UsageLimit:    c.UsageLimit,
			MinimumAmount: c.MinimumAmount,
		})
		switch {
		case errors.Is(err, coupon.ErrDuplicateCode):
			slog.Info("coupon exists, skipping", slog.String("code", c.Code))
			continue
		case err != nil:
			return errors.Wrapf(err, "create coupon %s", c.Code)
		}

		slog.Info("created coupon", slog.Int64("id", created.ID), slog.String("code", created.Code))
	}

	return nil
}
