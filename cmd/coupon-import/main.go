// Command coupon-import bulk-loads coupons from gzip-compressed CSV files.
//
// Every file starts with the header
//
//	code,discount_type,discount_value,minimum_amount,usage_limit,expires_at
//
// Codes are compared case-insensitively. A code that occurs more than once
// across the whole input set is ambiguous and is not imported at all. Codes
// already present in the database are left untouched.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type options struct {
	files     []string
	expected  uint
	batchSize int
}

// Importer persists a batch of coupons and reports how many were new.
type Importer interface {
	Import(ctx context.Context, coupons []coupon.Coupon) (int64, error)
}

func main() {
	var (
		dataDir     string
		databaseURL string
		opts        options
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.expected, "expected-codes", 1_000_000, "expected number of codes per file, sizes the bloom filters")
	flag.IntVar(&opts.batchSize, "batch-size", 1000, "coupons per insert batch")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	opts.files = flag.Args()
	if len(opts.files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
		if err != nil {
			slog.Error("invalid data dir", slog.String("error", err.Error()))
			os.Exit(1)
		}
		opts.files = matches
	}
	if len(opts.files) == 0 {
		slog.Error("no input files", slog.String("data_dir", dataDir))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, opts); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL string, opts options) error {
	for _, f := range opts.files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	res, err := collect(ctx, opts.files, opts.expected)
	if err != nil {
		return errors.Wrap(err, "collect coupons")
	}

	slog.Info("scan complete",
		slog.Int("accepted", len(res.accepted)),
		slog.Int("duplicates", len(res.duplicates)),
		slog.Int("invalid", res.invalid),
	)

	if len(res.accepted) == 0 {
		slog.Info("no coupons to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	inserted, err := importCoupons(ctx, postgres.NewCouponRepository(pool), res.accepted, opts.batchSize)
	if err != nil {
		return errors.Wrap(err, "import coupons")
	}

	slog.Info("coupons imported",
		slog.Int64("inserted", inserted),
		slog.Int64("existing", int64(len(res.accepted))-inserted),
	)
	return nil
}

// importCoupons writes coupons in batches of batchSize.
func importCoupons(ctx context.Context, imp Importer, coupons []coupon.Coupon, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = len(coupons)
	}

	var inserted int64
	for start := 0; start < len(coupons); start += batchSize {
		end := min(start+batchSize, len(coupons))
		n, err := imp.Import(ctx, coupons[start:end])
		if err != nil {
			return inserted, errors.Wrapf(err, "import batch at %d", start)
		}
		inserted += n

		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(coupons)))
	}
	return inserted, nil
}
