package analytics

import (
	"fmt"
	"time"

	apperr "github.com/prism-lab/project-prism/internal/core/errors"
	"github.com/prism-lab/project-prism/internal/core/timeseries"
)

// Configuration defaults recognized across the pipeline.
const (
	DefaultMovingAvgWindow    = 3
	DefaultTrailingWindowDays = 365
)

// RunConfig is the effective configuration of one pipeline run. The
// date range is half-open: [Start, End).
type RunConfig struct {
	Granularity        timeseries.Granularity `json:"granularity"`
	Start              time.Time              `json:"start"`
	End                time.Time              `json:"end"`
	SegmentCount       int                    `json:"segment_count"`
	ForecastHorizon    int                    `json:"forecast_horizon"`
	MovingAvgWindow    int                    `json:"moving_average_window"`
	TrailingWindowDays int                    `json:"trailing_window_days"`
}

// Normalized fills defaulted options and pins the range to UTC.
func (c RunConfig) Normalized() RunConfig {
	n := c
	if n.MovingAvgWindow == 0 {
		n.MovingAvgWindow = DefaultMovingAvgWindow
	}
	if n.TrailingWindowDays == 0 {
		n.TrailingWindowDays = DefaultTrailingWindowDays
	}
	n.Start = n.Start.UTC()
	n.End = n.End.UTC()
	return n
}

// Validate rejects malformed configuration before a run starts.
// Range and granularity problems keep their own error kinds so the
// failure is actionable; everything else is ErrInvalidConfig.
func (c RunConfig) Validate() error {
	if !c.Granularity.Valid() {
		return fmt.Errorf("%w: %q (must be day, week, or month)",
			apperr.ErrUnsupportedGranularity, string(c.Granularity))
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("%w: date_range start and end are required", apperr.ErrInvalidConfig)
	}
	if c.Start.After(c.End) {
		return fmt.Errorf("%w: start %s is after end %s",
			apperr.ErrInvalidRange, c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
	}
	if c.SegmentCount < 1 {
		return fmt.Errorf("%w: segment_count must be >= 1, got %d", apperr.ErrInvalidConfig, c.SegmentCount)
	}
	if c.ForecastHorizon < 1 {
		return fmt.Errorf("%w: forecast_horizon must be >= 1, got %d", apperr.ErrInvalidConfig, c.ForecastHorizon)
	}
	if c.MovingAvgWindow < 1 {
		return fmt.Errorf("%w: moving_average_window must be >= 1, got %d", apperr.ErrInvalidConfig, c.MovingAvgWindow)
	}
	if c.TrailingWindowDays < 1 {
		return fmt.Errorf("%w: trailing_window_days must be >= 1, got %d", apperr.ErrInvalidConfig, c.TrailingWindowDays)
	}
	return nil
}
