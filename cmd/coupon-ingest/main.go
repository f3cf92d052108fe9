// Command coupon-ingest bulk imports coupon definitions from gzipped CSV
// files. A code defined more than once across the input is a conflict and
// none of its rows are imported.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		expected    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz coupon files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected-codes", 1_000_000, "expected number of codes per file, sizes the bloom filters")
	flag.BoolVar(&dryRun, "dry-run", false, "detect conflicts and report without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, expected, dryRun); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, expected uint, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list input files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}

	conflicts, err := findConflicts(ctx, files, expected)
	if err != nil {
		return errors.Wrap(err, "find conflicts")
	}
	slog.Info("conflicting codes found", slog.Int("count", len(conflicts)))

	if dryRun {
		for code := range conflicts {
			slog.Info("conflict", slog.String("code", code))
		}
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

	stats, err := importCoupons(ctx, coupon.NewService(postgres.NewCouponRepository(pool)), files, conflicts)
	if err != nil {
		return errors.Wrap(err, "import coupons")
	}
	slog.Info("import finished",
		slog.Int("created", stats.created),
		slog.Int("conflicts", stats.conflicts),
		slog.Int("existing", stats.existing),
		slog.Int("invalid", stats.invalid),
	)
	return nil
}
