package main

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const bloomFPR = 0.001

// fileFilter holds every code seen in one file plus the codes that may
// repeat within it.
type fileFilter struct {
	codes    *bloom.BloomFilter
	suspects map[string]struct{}
}

type candidate struct {
	coupon coupon.Coupon
	count  int
}

// fileScan is the pass 2 outcome for a single file.
type fileScan struct {
	unique     []coupon.Coupon
	candidates map[string]*candidate
	invalid    int
}

type collected struct {
	accepted   []coupon.Coupon
	duplicates []string
	invalid    int
}

// collect reads files twice. Pass 1 builds a bloom filter per file. Pass 2
// parses rows and counts exactly only the codes some filter flags as a
// possible repeat; the rest are unique because bloom filters have no false
// negatives.
func collect(ctx context.Context, files []string, expected uint) (*collected, error) {
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildFilters(ctx, files, expected)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: parsing coupons")

	scans, err := scanFiles(ctx, files, filters)
	if err != nil {
		return nil, errors.Wrap(err, "scan files")
	}
	return merge(scans), nil
}

func buildFilters(ctx context.Context, files []string, expected uint) ([]fileFilter, error) {
	filters := make([]fileFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			ff := fileFilter{
				codes:    bloom.NewWithEstimates(max(expected, 1), bloomFPR),
				suspects: make(map[string]struct{}),
			}
			var count int
			if err := streamFile(ctx, path, func(_ int, record []string) error {
				code := coupon.NormalizeCode(record[colCode])
				if code == "" {
					return nil
				}
				count++
				if ff.codes.TestAndAddString(code) {
					ff.suspects[code] = struct{}{}
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			slog.Info("pass 1 complete",
				slog.String("file", path),
				slog.Int("codes", count),
				slog.Int("suspects", len(ff.suspects)),
			)
			filters[i] = ff
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func scanFiles(ctx context.Context, files []string, filters []fileFilter) ([]fileScan, error) {
	scans := make([]fileScan, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			scan := fileScan{candidates: make(map[string]*candidate)}
			if err := streamFile(ctx, path, func(line int, record []string) error {
				c, err := parseRecord(record)
				if err != nil {
					scan.invalid++
					slog.Warn("skipping invalid row",
						slog.String("file", path),
						slog.Int("line", line),
						slog.String("error", err.Error()),
					)
					return nil
				}
				if !maybeRepeated(c.Code, i, filters) {
					scan.unique = append(scan.unique, c)
					return nil
				}
				if cand, ok := scan.candidates[c.Code]; ok {
					cand.count++
					return nil
				}
				scan.candidates[c.Code] = &candidate{coupon: c, count: 1}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}

			slog.Info("pass 2 complete",
				slog.String("file", path),
				slog.Int("unique", len(scan.unique)),
				slog.Int("candidates", len(scan.candidates)),
				slog.Int("invalid", scan.invalid),
			)
			scans[i] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scans, nil
}

// maybeRepeated reports whether code may occur more than once across all
// files, given it was read from file idx.
func maybeRepeated(code string, idx int, filters []fileFilter) bool {
	if _, ok := filters[idx].suspects[code]; ok {
		return true
	}
	for j, f := range filters {
		if j != idx && f.codes.TestString(code) {
			return true
		}
	}
	return false
}

func merge(scans []fileScan) *collected {
	res := &collected{}
	counts := make(map[string]*candidate)
	for _, s := range scans {
		res.accepted = append(res.accepted, s.unique...)
		res.invalid += s.invalid
		for code, cand := range s.candidates {
			if seen, ok := counts[code]; ok {
				seen.count += cand.count
				continue
			}
			counts[code] = &candidate{coupon: cand.coupon, count: cand.count}
		}
	}

	for code, cand := range counts {
		if cand.count > 1 {
			res.duplicates = append(res.duplicates, code)
			continue
		}
		res.accepted = append(res.accepted, cand.coupon)
	}

	slices.SortFunc(res.accepted, func(a, b coupon.Coupon) int {
		return strings.Compare(a.Code, b.Code)
	})
	slices.Sort(res.duplicates)
	return res
}
