// Package analytics holds the domain types shared by the engines, the
// pipeline orchestrator, and the projection API, plus the named view
// presets that resolve to run configurations.
package analytics

import (
	"time"

	"github.com/prism-lab/project-prism/internal/core/timeseries"
	"github.com/shopspring/decimal"
)

// TimeBucketAggregate is one period of the dense sales series. Buckets
// of a granularity partition the covered range with no gap and no
// overlap; periods with no transactions are zero-filled.
//
// GrowthRate is revenue change relative to the previous bucket. It is
// null (NullDecimal invalid, JSON null) for the first bucket and
// whenever the previous bucket's revenue is zero — never an arithmetic
// error. MovingAverage is the trailing revenue mean over the configured
// window, computed over the available prefix at the series start.
type TimeBucketAggregate struct {
	PeriodStart      time.Time              `json:"period_start"`
	PeriodEnd        time.Time              `json:"period_end"`
	Granularity      timeseries.Granularity `json:"granularity"`
	TotalRevenue     decimal.Decimal        `json:"total_revenue"`
	UnitCount        int64                  `json:"unit_count"`
	TransactionCount int64                  `json:"transaction_count"`
	GrowthRate       decimal.NullDecimal    `json:"growth_rate"`
	MovingAverage    decimal.Decimal        `json:"moving_average"`
}

// CustomerFeatureVector is one customer's RFM position as of a snapshot.
// Vectors are derived, never mutated; a new snapshot creates new vectors.
type CustomerFeatureVector struct {
	CustomerID     int64           `json:"customer_id"`
	RecencyDays    float64         `json:"recency_days"`
	FrequencyCount int64           `json:"frequency_count"`
	MonetaryTotal  decimal.Decimal `json:"monetary_total"`
}

// SegmentCentroid is the mean raw feature vector of a segment's members.
type SegmentCentroid struct {
	RecencyDays    float64 `json:"recency_days"`
	FrequencyCount float64 `json:"frequency_count"`
	MonetaryTotal  float64 `json:"monetary_total"`
}

// Segment is one behavioral customer cluster. IDs are assigned by
// sorting centroids on (monetary, frequency, recency) descending, so
// segment 0 always holds the highest-value customers and repeated runs
// on identical input produce identical numbering.
type Segment struct {
	ID          int             `json:"segment_id"`
	Centroid    SegmentCentroid `json:"centroid"`
	CustomerIDs []int64         `json:"member_customer_ids"`
}

// SegmentationResult bundles the segments of one run with the customers
// excluded from clustering for having no transactions in the trailing
// window.
type SegmentationResult struct {
	SnapshotAt          time.Time `json:"snapshot_at"`
	Segments            []Segment `json:"segments"`
	InactiveCustomerIDs []int64   `json:"inactive_customer_ids"`
}

// ForecastModelVersion identifies the fitting algorithm. Bumped only on
// algorithm change, never per run.
const ForecastModelVersion = "trend-seasonal/v1"

// ForecastResult is one projected future period. Immutable once
// produced; superseded, not mutated, by later runs. TrainedAt is the
// end of the training series (a data timestamp, not a wall clock) so
// refits on identical input are bit-identical.
type ForecastResult struct {
	TargetPeriod     time.Time `json:"target_period"`
	PredictedRevenue float64   `json:"predicted_revenue"`
	LowerBound       float64   `json:"lower_bound"`
	UpperBound       float64   `json:"upper_bound"`
	ModelVersion     string    `json:"model_version"`
	TrainedAt        time.Time `json:"trained_at"`
}

// SalesSummary is the descriptive rollup of the analyzed range.
type SalesSummary struct {
	TotalTransactions   int64           `json:"total_transactions"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	AvgTransactionValue decimal.Decimal `json:"avg_transaction_value"`
	UniqueCustomers     int64           `json:"unique_customers"`
}

// ProductRollup is one product's sales totals within the analyzed range.
type ProductRollup struct {
	ProductID        int64           `json:"product_id"`
	Name             string          `json:"name"`
	Category         string          `json:"category"`
	UnitsSold        int64           `json:"units_sold"`
	Revenue          decimal.Decimal `json:"revenue"`
	TransactionCount int64           `json:"transaction_count"`
}

// CategoryMargin is the profitability rollup of one product category.
type CategoryMargin struct {
	Category  string          `json:"category"`
	Revenue   decimal.Decimal `json:"revenue"`
	Cost      decimal.Decimal `json:"cost"`
	Profit    decimal.Decimal `json:"profit"`
	MarginPct decimal.Decimal `json:"margin_pct"`
}

// Pipeline run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// PipelineRun tracks one orchestration pass. InputsHash fingerprints
// the effective configuration plus the record-set extent; runs with
// equal hashes are interchangeable and cacheable.
type PipelineRun struct {
	RunID       string     `json:"run_id"`
	InputsHash  string     `json:"inputs_hash"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	FailedStage string     `json:"failed_stage,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ResultSet is the immutable artifact bundle of a succeeded run.
// Published atomically after the join barrier; consumers never observe
// a partial set.
type ResultSet struct {
	Aggregates   []TimeBucketAggregate `json:"aggregates"`
	Segmentation SegmentationResult    `json:"segmentation"`
	Forecast     []ForecastResult      `json:"forecast"`
	Summary      SalesSummary          `json:"summary"`
	TopProducts  []ProductRollup       `json:"top_products"`
	Margins      []CategoryMargin      `json:"margins"`
}
