// Command coupon-ingest loads bulk promo-code feeds into the coupons table.
//
// Feeds are gzip-compressed text files, one candidate code per line, and a
// code counts as redeemable only when at least two independent feeds agree on
// it. The feeds are far too large to hold in memory, so each one is streamed
// twice: a first pass builds a bloom filter per feed, a second pass
// cross-checks every code against the other feeds' filters.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lamngoc/minimart/internal/domain/coupon"
	"github.com/lamngoc/minimart/internal/storage/postgres"
)

const (
	filterCapacity = 120_000_000
	filterFPR      = 0.001
	// quorum is how many feeds must list a code before it is trusted.
	quorum        = 2
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
	upsertBatch   = 500
)

// promoRule is the discount attached to a recognized code. Codes absent from
// the table fall back to baseRule.
type promoRule struct {
	kind     coupon.DiscountType
	value    decimal.Decimal
	minOrder decimal.Decimal
	cap      decimal.Decimal
}

var promoRules = map[string]promoRule{
	"FIFTYOFF": {kind: coupon.DiscountPercentage, value: decimal.NewFromInt(50)},
	"SIXTYOFF": {kind: coupon.DiscountPercentage, value: decimal.NewFromInt(60)},
	"FREEZAAA": {kind: coupon.DiscountPercentage, value: decimal.NewFromInt(100)},
	"GNULINUX": {kind: coupon.DiscountPercentage, value: decimal.NewFromInt(15), cap: decimal.NewFromInt(50000)},
	"OVER9000": {kind: coupon.DiscountFixed, value: decimal.NewFromInt(9000), minOrder: decimal.NewFromInt(50000)},
	"HAPPYHRS": {kind: coupon.DiscountPercentage, value: decimal.NewFromInt(18), cap: decimal.NewFromInt(100000)},
}

var baseRule = promoRule{kind: coupon.DiscountPercentage, value: decimal.NewFromInt(10)}

const upsertCouponSQL = `INSERT INTO coupons (code, discount_type, discount_value, min_order_amount, max_discount_amount, active)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (code) DO UPDATE SET
    discount_type = EXCLUDED.discount_type,
    discount_value = EXCLUDED.discount_value,
    min_order_amount = EXCLUDED.min_order_amount,
    max_discount_amount = EXCLUDED.max_discount_amount,
    active = TRUE`

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzip promo-code feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or MINIMART_DATABASE_URL / DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("MINIMART_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url, MINIMART_DATABASE_URL or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := ingest(ctx, dataDir, databaseURL); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest done")
}

func ingest(ctx context.Context, dataDir, databaseURL string) error {
	feeds, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feeds")
	}
	sort.Strings(feeds)
	if len(feeds) < quorum {
		return errors.Errorf("need at least %d feeds in %s, found %d", quorum, dataDir, len(feeds))
	}

	slog.Info("building feed filters", slog.Int("feeds", len(feeds)))
	filters, err := buildFeedFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build feed filters")
	}

	slog.Info("cross-checking feeds")
	codes, err := crossCheckFeeds(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "cross-check feeds")
	}

	slog.Info("redeemable codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return upsertCodes(ctx, pool, codes)
}

// buildFeedFilters streams every feed once and builds one bloom filter per
// feed, all feeds in parallel.
func buildFeedFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(filterCapacity, filterFPR)
			var seen uint64

			err := eachLine(ctx, feed, func(code string) {
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				filter.AddString(code)
				seen++
				if seen%progressEvery == 0 {
					slog.Info("filter pass progress", slog.String("feed", filepath.Base(feed)), slog.Uint64("seen", seen))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "filter feed %s", feed)
			}

			slog.Info("filter pass done", slog.String("feed", filepath.Base(feed)), slog.Uint64("seen", seen))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// crossCheckFeeds re-streams every feed and tests each code against the OTHER
// feeds' filters. Per feed it accumulates a code -> feed bitmask; the merged
// masks keep codes whose popcount reaches the quorum.
func crossCheckFeeds(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]string, error) {
	perFeed := make([]map[string]uint, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			hits := make(map[string]uint)
			bit := uint(1) << uint(i)
			var seen uint64

			err := eachLine(ctx, feed, func(code string) {
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				seen++
				if seen%progressEvery == 0 {
					slog.Info("cross-check progress", slog.String("feed", filepath.Base(feed)), slog.Uint64("seen", seen))
				}
				for j, f := range filters {
					if j == i {
						continue
					}
					if f.TestString(code) {
						hits[code] |= bit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "cross-check feed %s", feed)
			}

			slog.Info("cross-check done",
				slog.String("feed", filepath.Base(feed)),
				slog.Uint64("seen", seen),
				slog.Int("hits", len(hits)),
			)
			perFeed[i] = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, hits := range perFeed {
		for code, mask := range hits {
			merged[code] |= mask
		}
	}

	var codes []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= quorum {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// eachLine streams a gzip feed line by line.
func eachLine(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(sc.Text())
	}
	return errors.Wrapf(sc.Err(), "scan %s", path)
}

// upsertCodes writes the redeemable codes in batches, attaching the promo
// rule for recognized codes and baseRule for the rest.
func upsertCodes(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	slog.Info("upserting coupons", slog.Int("count", len(codes)))

	for start := 0; start < len(codes); start += upsertBatch {
		end := min(start+upsertBatch, len(codes))

		var batch pgx.Batch
		for _, code := range codes[start:end] {
			rule, ok := promoRules[code]
			if !ok {
				rule = baseRule
			}
			batch.Queue(upsertCouponSQL, code, string(rule.kind), rule.value, rule.minOrder, rule.cap)
		}

		if err := pool.SendBatch(ctx, &batch).Close(); err != nil {
			return errors.Wrapf(err, "upsert batch at %d", start)
		}
		slog.Info("upsert progress", slog.Int("written", end), slog.Int("total", len(codes)))
	}

	return nil
}
