package main

import (
	"context"
	"log/slog"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

// couponCreator is implemented by *coupon.Admin.
type couponCreator interface {
	Create(ctx context.Context, p coupon.CreateParams) (*coupon.Coupon, error)
}

type importStats struct {
	created   int
	existing  int
	ambiguous int
}

// importRows creates every unambiguous row. Codes already in the database
// are counted and skipped.
func importRows(ctx context.Context, admin couponCreator, res *scanResult) (importStats, error) {
	var stats importStats
	for i, r := range res.rows {
		if _, dup := res.duplicates[r.params.Code]; dup {
			stats.ambiguous++
			continue
		}

		_, err := admin.Create(ctx, r.params)
		switch {
		case errors.Is(err, coupon.ErrDuplicateCode):
			stats.existing++
		case err != nil:
			return stats, errors.Wrapf(err, "create coupon %s (file %d line %d)", r.params.Code, r.file+1, r.line)
		default:
			stats.created++
		}

		if (i+1)%1000 == 0 {
			slog.Info("write progress", slog.Int("processed", i+1), slog.Int("total", len(res.rows)))
		}
	}
	return stats, nil
}
