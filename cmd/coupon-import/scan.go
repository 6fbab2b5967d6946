package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// row is one parsed coupon definition.
type row struct {
	file   int
	line   int
	params coupon.CreateParams
}

// scanResult is the merged output of every file.
type scanResult struct {
	rows       []row
	duplicates map[string]struct{}
	invalid    int
}

type fileResult struct {
	rows       []row
	candidates map[string]uint
	repeated   map[string]struct{}
	invalid    int
}

// scan parses all files in two passes. Pass 1 builds one bloom filter of
// codes per file; pass 2 parses every row and marks codes that a filter of
// another file may contain. A code is a duplicate only when at least two
// files report it for real, so bloom false positives never drop a row.
func scan(ctx context.Context, files []string) (*scanResult, error) {
	filters, err := buildFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			r, err := scanFile(gctx, i, f, filters)
			if err != nil {
				return errors.Wrapf(err, "scan file %s", f)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &scanResult{duplicates: make(map[string]struct{})}
	merged := make(map[string]uint)
	for _, r := range results {
		out.rows = append(out.rows, r.rows...)
		out.invalid += r.invalid
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
		for code := range r.repeated {
			out.duplicates[code] = struct{}{}
		}
	}
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			out.duplicates[code] = struct{}{}
		}
	}
	return out, nil
}

func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count int
			if err := streamGzCSV(ctx, path, func(_ int, rec []string) {
				if code := coupon.NormalizeCode(rec[0]); code != "" {
					filter.AddString(code)
					count++
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func scanFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (fileResult, error) {
	r := fileResult{
		candidates: make(map[string]uint),
		repeated:   make(map[string]struct{}),
	}
	fileBit := uint(1) << uint(idx)
	seen := make(map[string]struct{})

	err := streamGzCSV(ctx, path, func(line int, rec []string) {
		p, err := parseRecord(rec)
		if err != nil {
			r.invalid++
			slog.Warn("skipping invalid row",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			return
		}
		if _, ok := seen[p.Code]; ok {
			r.repeated[p.Code] = struct{}{}
		}
		seen[p.Code] = struct{}{}

		for j, f := range filters {
			if j != idx && f.TestString(p.Code) {
				r.candidates[p.Code] |= fileBit
				break
			}
		}

		r.rows = append(r.rows, row{file: idx, line: line, params: p})
		if len(r.rows)%progressEvery == 0 {
			slog.Info("pass 2 progress", slog.String("file", path), slog.Int("rows", len(r.rows)))
		}
	})
	return r, err
}

// parseRecord turns code,kind,value[,minimum_order[,usage_limit[,description]]]
// into validated create params. Empty optional fields mean no limit.
func parseRecord(rec []string) (coupon.CreateParams, error) {
	if len(rec) < 3 {
		return coupon.CreateParams{}, errors.Errorf("expected at least 3 fields, got %d", len(rec))
	}
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	p := coupon.CreateParams{
		Code:        field(0),
		Kind:        coupon.Kind(strings.ToLower(field(1))),
		Description: field(5),
	}

	value, err := decimal.NewFromString(field(2))
	if err != nil {
		return coupon.CreateParams{}, errors.Wrap(err, "value")
	}
	p.Value = value

	if s := field(3); s != "" {
		minimum, err := decimal.NewFromString(s)
		if err != nil {
			return coupon.CreateParams{}, errors.Wrap(err, "minimum_order")
		}
		p.MinimumOrder = &minimum
	}
	if s := field(4); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return coupon.CreateParams{}, errors.Wrap(err, "usage_limit")
		}
		p.UsageLimit = &limit
	}

	if err := p.Validate(); err != nil {
		return coupon.CreateParams{}, err
	}
	return p, nil
}

// streamGzCSV calls fn for every data record of a gzip-compressed CSV file.
// A leading header row starting with "code" is skipped.
func streamGzCSV(ctx context.Context, path string, fn func(line int, rec []string)) error {
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

	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		line, _ := cr.FieldPos(0)
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		fn(line, rec)
	}
}
