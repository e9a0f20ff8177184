// voucher-ingest loads bulk voucher code drops into the database.
//
// Partners deliver several gzipped files of candidate codes, one code per
// line. A code is considered genuine only when it appears in at least two
// of the files; everything else is noise. The files are far too large to
// hold in memory, so membership across files is tested with per-file bloom
// filters built in a first pass.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/geraidev/checkout/internal/domain/catalog"
	"github.com/geraidev/checkout/internal/domain/voucher"
	"github.com/geraidev/checkout/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// codeRule is the discount definition applied to a known code. Codes not
// listed here get defaultRule.
type codeRule struct {
	kind        catalog.DiscountKind
	value       string
	maxDiscount string
	totalLimit  int
}

var codeRules = map[string]codeRule{
	"KOPITEN0": {kind: catalog.DiscountPercent, value: "10", maxDiscount: "50000"},
	"FIFTYOFF": {kind: catalog.DiscountPercent, value: "50", maxDiscount: "100000", totalLimit: 1000},
	"ONGKIR00": {kind: catalog.DiscountFixed, value: "15000"},
	"GAJIAN25": {kind: catalog.DiscountPercent, value: "25", maxDiscount: "75000", totalLimit: 5000},
	"HEMAT500": {kind: catalog.DiscountFixed, value: "50000", totalLimit: 2000},
}

var defaultRule = codeRule{kind: catalog.DiscountPercent, value: "10", maxDiscount: "25000"}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
		validDays   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing voucherbaseN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&validDays, "valid-days", 90, "validity window in days for ingested vouchers")
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

	if err := run(ctx, dataDir, databaseURL, validDays); err != nil {
		slog.Error("voucher ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("voucher ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, validDays int) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("voucherbase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: find codes appearing in 2+ files.
	slog.Info("pass 2: finding genuine codes")

	validCodes, err := findValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("genuine codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	vouchers := repository.NewVoucherRepository(pool)
	if err := writeVouchers(ctx, vouchers, validCodes, validDays); err != nil {
		return errors.Wrap(err, "write vouchers to database")
	}

	return nil
}

func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each file and checks codes against the OTHER
// files' bloom filters. A code counts as genuine when it appears in 2+ files.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}
	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
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

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// writeVouchers upserts all genuine codes with their discount rules.
func writeVouchers(ctx context.Context, repo *repository.VoucherRepository, codes []string, validDays int) error {
	slog.Info("writing vouchers to database", slog.Int("count", len(codes)))

	now := time.Now()
	expires := now.AddDate(0, 0, validDays)

	for i, code := range codes {
		rule, ok := codeRules[code]
		if !ok {
			rule = defaultRule
		}

		value, err := decimal.NewFromString(rule.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for code %s", code)
		}

		v := &voucher.Voucher{
			ID:           uuid.New().String(),
			Code:         code,
			DiscountKind: rule.kind,
			Value:        value,
			StartAt:      now,
			ExpiresAt:    expires,
			Active:       true,
		}
		if rule.maxDiscount != "" {
			md, err := decimal.NewFromString(rule.maxDiscount)
			if err != nil {
				return errors.Wrapf(err, "parse max discount for code %s", code)
			}
			v.MaxDiscount = &md
		}
		if rule.totalLimit > 0 {
			limit := rule.totalLimit
			v.TotalLimit = &limit
		}

		if err := repo.Upsert(ctx, v); err != nil {
			return errors.Wrapf(err, "upsert voucher %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
