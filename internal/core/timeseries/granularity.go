// Package timeseries provides the calendar bucket math shared by the
// aggregation and forecast engines: granularity parsing, bucket
// boundaries, range tiling, and seasonal cycle lengths. All boundaries
// are computed in UTC.
package timeseries

import (
	"fmt"

	apperr "github.com/prism-lab/project-prism/internal/core/errors"
)

// Granularity is a supported time-bucket size.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity validates a granularity label.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q (must be day, week, or month)", apperr.ErrUnsupportedGranularity, s)
	}
	return g, nil
}

// Valid reports whether g is one of the enumerated granularities.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return true
	default:
		return false
	}
}

// Cycle returns the seasonal cycle length for the granularity: 7 for
// day (weekday shape), 52 for week, 12 for month. Returns 0 for an
// unknown granularity.
func (g Granularity) Cycle() int {
	switch g {
	case GranularityDay:
		return 7
	case GranularityWeek:
		return 52
	case GranularityMonth:
		return 12
	default:
		return 0
	}
}
