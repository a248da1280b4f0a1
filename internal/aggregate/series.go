// Package aggregate builds the dense time-bucketed sales series and the
// descriptive rollups (summary, top products, category margins). All
// functions are pure: records in, artifacts out, no I/O.
package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	apperr "github.com/prism-lab/project-prism/internal/core/errors"
	"github.com/prism-lab/project-prism/internal/core/timeseries"
	"github.com/prism-lab/project-prism/internal/store"
)

// bucketTotals accumulates the raw sums of one period before the
// derived columns (growth, moving average) are layered on.
type bucketTotals struct {
	revenue decimal.Decimal
	units   int64
	txCount int64
}

// BuildSeries folds transactions into the dense bucket series for
// [start, end). Every bucket of the granularity appears exactly once;
// periods with no transactions are zero-filled. Transactions outside
// the range are ignored, so callers may pass a wider fetch result.
//
// GrowthRate is null for the first bucket and whenever the previous
// bucket's revenue is zero. MovingAverage averages the trailing
// maWindow buckets, shrinking to the available prefix at the series
// start.
func BuildSeries(
	txs []store.Transaction,
	start, end time.Time,
	granularity timeseries.Granularity,
	maWindow int,
) ([]analytics.TimeBucketAggregate, error) {
	if maWindow < 1 {
		return nil, fmt.Errorf("%w: moving average window must be >= 1, got %d", apperr.ErrInvalidConfig, maWindow)
	}

	starts, err := timeseries.Tile(start, end, granularity)
	if err != nil {
		return nil, err
	}

	totals := make(map[time.Time]bucketTotals)
	for _, tx := range txs {
		at := tx.OccurredAt.UTC()
		if at.Before(start) || !at.Before(end) {
			continue
		}

		key := timeseries.BucketStart(at, granularity)
		t, ok := totals[key]
		if !ok {
			t = bucketTotals{revenue: decimal.Zero}
		}
		t.revenue = t.revenue.Add(tx.Amount())
		t.units += tx.Quantity
		t.txCount++
		totals[key] = t
	}

	series := make([]analytics.TimeBucketAggregate, 0, len(starts))
	for i, bucketStart := range starts {
		t, ok := totals[bucketStart]
		if !ok {
			t = bucketTotals{revenue: decimal.Zero}
		}

		agg := analytics.TimeBucketAggregate{
			PeriodStart:      bucketStart,
			PeriodEnd:        timeseries.NextBucket(bucketStart, granularity),
			Granularity:      granularity,
			TotalRevenue:     t.revenue,
			UnitCount:        t.units,
			TransactionCount: t.txCount,
		}

		if i > 0 {
			prev := series[i-1].TotalRevenue
			if !prev.IsZero() {
				agg.GrowthRate = decimal.NewNullDecimal(t.revenue.Sub(prev).Div(prev))
			}
		}

		agg.MovingAverage = trailingMean(series, t.revenue, i, maWindow)

		series = append(series, agg)
	}

	return series, nil
}

// trailingMean averages revenue over the effective window ending at
// bucket i: the last maWindow buckets, or the whole prefix while the
// series is younger than the window.
func trailingMean(prefix []analytics.TimeBucketAggregate, current decimal.Decimal, i, maWindow int) decimal.Decimal {
	w := maWindow
	if i+1 < w {
		w = i + 1
	}

	sum := current
	for j := i - w + 1; j < i; j++ {
		sum = sum.Add(prefix[j].TotalRevenue)
	}

	return sum.Div(decimal.NewFromInt(int64(w)))
}
