package projection

import (
	"time"

	"github.com/prism-lab/project-prism/internal/core/analytics"
)

// TriggerRunRequest is the POST /v1/runs body. Exactly one of View or
// Config selects the run configuration.
type TriggerRunRequest struct {
	View   string          `json:"view,omitempty"`
	Config *RunConfigInput `json:"config,omitempty"`
}

// RunConfigInput is the inline configuration shape. Dates are
// YYYY-MM-DD and interpreted as UTC midnights; the range is half-open.
type RunConfigInput struct {
	Granularity        string `json:"granularity"`
	Start              string `json:"start"`
	End                string `json:"end"`
	SegmentCount       int    `json:"segment_count"`
	ForecastHorizon    int    `json:"forecast_horizon"`
	MovingAvgWindow    int    `json:"moving_average_window,omitempty"`
	TrailingWindowDays int    `json:"trailing_window_days,omitempty"`
}

// ViewSummary is the API projection of a loaded view preset.
type ViewSummary struct {
	Name               string `json:"name"`
	Granularity        string `json:"granularity"`
	RangeDays          int    `json:"range_days,omitempty"`
	Start              string `json:"start,omitempty"`
	End                string `json:"end,omitempty"`
	SegmentCount       int    `json:"segment_count"`
	ForecastHorizon    int    `json:"forecast_horizon"`
	MovingAvgWindow    int    `json:"moving_average_window,omitempty"`
	TrailingWindowDays int    `json:"trailing_window_days,omitempty"`
	Fingerprint        string `json:"fingerprint"`
}

// ViewsResponse lists the loaded view presets.
type ViewsResponse struct {
	Views []ViewSummary `json:"views"`
}

// AggregatesResponse carries the time-bucketed series of one run.
type AggregatesResponse struct {
	RunID      string                          `json:"run_id"`
	Aggregates []analytics.TimeBucketAggregate `json:"aggregates"`
}

// SegmentsResponse carries the segmentation artifact of one run.
type SegmentsResponse struct {
	RunID               string              `json:"run_id"`
	SnapshotAt          time.Time           `json:"snapshot_at"`
	Segments            []analytics.Segment `json:"segments"`
	InactiveCustomerIDs []int64             `json:"inactive_customer_ids"`
}

// ForecastResponse carries the projected periods of one run.
type ForecastResponse struct {
	RunID    string                     `json:"run_id"`
	Forecast []analytics.ForecastResult `json:"forecast"`
}

// SummaryResponse carries the descriptive rollup of one run.
type SummaryResponse struct {
	RunID   string                 `json:"run_id"`
	Summary analytics.SalesSummary `json:"summary"`
}

// ProductsResponse carries the revenue-ranked products of one run.
type ProductsResponse struct {
	RunID    string                    `json:"run_id"`
	Products []analytics.ProductRollup `json:"products"`
}

// MarginsResponse carries the per-category profitability of one run.
type MarginsResponse struct {
	RunID   string                     `json:"run_id"`
	Margins []analytics.CategoryMargin `json:"margins"`
}
