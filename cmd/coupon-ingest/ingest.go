package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/boutique-checkout/internal/domain/coupon"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// fileFilter is the pass 1 result for one file.
type fileFilter struct {
	filter *bloom.BloomFilter
	// suspects are codes that tested positive while the filter was being
	// built, i.e. likely repeated within the file.
	suspects map[string]struct{}
	codes    uint64
}

// findConflicts returns the canonical codes that occur in more than one row
// across files.
//
// Pass 1 builds one bloom filter per file concurrently. Pass 2 re-streams
// every file and counts exactly only the codes that are positive in another
// file's filter or were suspected within their own file.
func findConflicts(ctx context.Context, files []string, expected uint) (map[string]struct{}, error) {
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters := make([]fileFilter, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			ff := fileFilter{
				filter:   bloom.NewWithEstimates(expected, bloomFPR),
				suspects: make(map[string]struct{}),
			}
			err := streamCodes(gctx, path, func(code string) {
				if ff.filter.TestAndAddString(code) {
					ff.suspects[code] = struct{}{}
				}
				ff.codes++
				if ff.codes%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", ff.codes))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete",
				slog.String("file", path),
				slog.Uint64("codes", ff.codes),
				slog.Int("suspects", len(ff.suspects)),
			)
			filters[i] = ff
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("pass 2: counting candidate codes")
	counts := make([]map[string]int, len(files))

	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			local := make(map[string]int)
			err := streamCodes(gctx, path, func(code string) {
				if isCandidate(filters, i, code) {
					local[code]++
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			counts[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := make(map[string]int)
	for _, local := range counts {
		for code, n := range local {
			total[code] += n
		}
	}
	conflicts := make(map[string]struct{})
	for code, n := range total {
		if n > 1 {
			conflicts[code] = struct{}{}
		}
	}
	return conflicts, nil
}

func isCandidate(filters []fileFilter, idx int, code string) bool {
	if _, ok := filters[idx].suspects[code]; ok {
		return true
	}
	for j, ff := range filters {
		if j != idx && ff.filter.TestString(code) {
			return true
		}
	}
	return false
}

// streamCodes calls fn with the canonical code of every data row in path.
func streamCodes(ctx context.Context, path string, fn func(code string)) error {
	return streamRecords(ctx, path, func(record []string) error {
		if code := coupon.Canonical(record[colCode]); code != "" {
			fn(code)
		}
		return nil
	})
}

// streamRecords opens a gzipped CSV file and calls fn for every record after
// the optional header.
func streamRecords(ctx context.Context, path string, fn func(record []string) error) error {
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
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	for line := 0; ; line++ {
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
		if len(record) == 0 || (line == 0 && isHeader(record)) {
			continue
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

type couponCreator interface {
	Create(ctx context.Context, cp *coupon.Coupon) error
}

type importStats struct {
	created, conflicts, existing, invalid int
}

// importCoupons creates every valid row whose code is not a conflict. Codes
// already present in the store are left untouched.
func importCoupons(ctx context.Context, svc couponCreator, files []string, conflicts map[string]struct{}) (importStats, error) {
	var stats importStats
	for _, path := range files {
		err := streamRecords(ctx, path, func(record []string) error {
			c, err := parseRow(record)
			if err != nil {
				stats.invalid++
				slog.Warn("skipping invalid row", slog.String("file", path), slog.String("error", err.Error()))
				return nil
			}
			if _, ok := conflicts[c.Code]; ok {
				stats.conflicts++
				return nil
			}

			err = svc.Create(ctx, &c)
			switch {
			case errors.Is(err, coupon.ErrCodeTaken):
				stats.existing++
			case err != nil:
				return errors.Wrapf(err, "create coupon %s", c.Code)
			default:
				stats.created++
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
		slog.Info("file imported", slog.String("file", path), slog.Int("created", stats.created))
	}
	return stats, nil
}
