package timeseries

import (
	"fmt"
	"time"

	apperr "github.com/prism-lab/project-prism/internal/core/errors"
)

// BucketStart truncates t to the start of its bucket in UTC.
// Day buckets start at 00:00:00, week buckets on Monday 00:00:00,
// month buckets on the 1st.
func BucketStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Weekday is Sunday-based; shift so Monday maps to offset 0.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// NextBucket returns the start of the bucket following start.
// start must itself be a bucket boundary.
func NextBucket(start time.Time, g Granularity) time.Time {
	switch g {
	case GranularityDay:
		return start.AddDate(0, 0, 1)
	case GranularityWeek:
		return start.AddDate(0, 0, 7)
	case GranularityMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start
	}
}

// Tile returns the ordered bucket starts whose periods intersect the
// half-open range [start, end). The first bucket is BucketStart(start),
// so the cover may begin before start when start is not on a boundary.
// Consecutive results partition the covered span with no gap and no
// overlap.
//
// Returns ErrInvalidRange when start is after end and
// ErrUnsupportedGranularity for unknown granularities. An empty range
// (start equal to end) yields no buckets.
func Tile(start, end time.Time, g Granularity) ([]time.Time, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %q (must be day, week, or month)", apperr.ErrUnsupportedGranularity, string(g))
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s",
			apperr.ErrInvalidRange, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	if start.Equal(end) {
		return nil, nil
	}

	end = end.UTC()
	var starts []time.Time
	for cur := BucketStart(start, g); cur.Before(end); cur = NextBucket(cur, g) {
		starts = append(starts, cur)
	}
	return starts, nil
}
