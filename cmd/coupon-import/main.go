// Command coupon-import loads coupon definitions from gzip-compressed CSV
// files into the coupons table.
//
// Each line is code,kind,value[,minimum_order[,usage_limit[,description]]].
// A code defined more than once, in one file or across files, is ambiguous
// and skipped. Codes already present in the database are left untouched.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/repository"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing coupon files")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob of coupon files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
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

	if err := run(ctx, dataDir, pattern, databaseURL, dryRun); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "glob coupon files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", pattern, dataDir)
	}
	if len(files) > bits.UintSize {
		return errors.Errorf("at most %d files per run, got %d", bits.UintSize, len(files))
	}

	slog.Info("scanning coupon files", slog.Int("files", len(files)))

	res, err := scan(ctx, files)
	if err != nil {
		return errors.Wrap(err, "scan files")
	}

	slog.Info("scan complete",
		slog.Int("rows", len(res.rows)),
		slog.Int("invalid", res.invalid),
		slog.Int("ambiguous_codes", len(res.duplicates)),
	)

	if dryRun {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	stats, err := importRows(ctx, coupon.NewAdmin(repository.NewCouponRepository(pool)), res)
	if err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	slog.Info("import finished",
		slog.Int("created", stats.created),
		slog.Int("existing", stats.existing),
		slog.Int("ambiguous", stats.ambiguous),
	)
	return nil
}
