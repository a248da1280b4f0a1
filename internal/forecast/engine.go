// Package forecast fits a linear trend plus seasonal offsets to the
// revenue series and projects future periods with residual-width
// confidence bounds. The fit is closed-form and fully deterministic:
// refitting on an identical series yields bit-identical results.
package forecast

import (
	"fmt"
	"math"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	apperr "github.com/prism-lab/project-prism/internal/core/errors"
	"github.com/prism-lab/project-prism/internal/core/timeseries"
)

// DefaultConfidenceZ is the bound multiplier when none is configured
// (a 95% interval under a normal residual assumption).
const DefaultConfidenceZ = 1.96

// Engine projects the revenue series forward.
type Engine struct {
	confidenceZ float64
}

// NewEngine creates a forecast engine. confidenceZ <= 0 selects the
// default multiplier.
func NewEngine(confidenceZ float64) *Engine {
	if confidenceZ <= 0 {
		confidenceZ = DefaultConfidenceZ
	}
	return &Engine{confidenceZ: confidenceZ}
}

// TrendModel is the least-squares line over the period index.
type TrendModel struct {
	Intercept float64
	Slope     float64
}

// At returns the trend value at period index i.
func (m TrendModel) At(i int) float64 {
	return m.Intercept + m.Slope*float64(i)
}

// FitTrend fits y = intercept + slope*i by ordinary least squares over
// the period index. Series shorter than two points get a flat trend.
func FitTrend(y []float64) TrendModel {
	n := len(y)
	if n == 0 {
		return TrendModel{}
	}
	if n == 1 {
		return TrendModel{Intercept: y[0]}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return TrendModel{Intercept: sumY / fn}
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	return TrendModel{Intercept: intercept, Slope: slope}
}

// SeasonalOffsets returns the mean deviation from the trend at each
// cycle position (period index modulo cycle). Positions never observed
// stay 0.
func SeasonalOffsets(y []float64, trend TrendModel, cycle int) []float64 {
	if cycle < 1 {
		return nil
	}

	offsets := make([]float64, cycle)
	counts := make([]int, cycle)
	for i, v := range y {
		pos := i % cycle
		offsets[pos] += v - trend.At(i)
		counts[pos]++
	}
	for pos := range offsets {
		if counts[pos] > 0 {
			offsets[pos] /= float64(counts[pos])
		}
	}

	return offsets
}

// Forecast projects horizon periods beyond the end of the series.
// The seasonal cycle follows the series granularity (7 daily, 52
// weekly, 12 monthly) and training requires at least two full cycles.
// Prediction = trend extrapolation + the matching seasonal offset;
// bounds are predicted ± z×σ of the training residuals. TrainedAt is
// the end of the training data, a data timestamp rather than a wall
// clock, so identical inputs give identical artifacts.
func (e *Engine) Forecast(series []analytics.TimeBucketAggregate, horizon int) ([]analytics.ForecastResult, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: forecast horizon must be >= 1, got %d", apperr.ErrInvalidConfig, horizon)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: empty training series", apperr.ErrInsufficientHistory)
	}

	granularity := series[0].Granularity
	cycle := granularity.Cycle()
	if cycle == 0 {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedGranularity, granularity)
	}
	if len(series) < 2*cycle {
		return nil, fmt.Errorf("%w: %d %s periods of history, need %d",
			apperr.ErrInsufficientHistory, len(series), granularity, 2*cycle)
	}

	y := make([]float64, len(series))
	for i, bucket := range series {
		y[i] = bucket.TotalRevenue.InexactFloat64()
	}

	trend := FitTrend(y)
	offsets := SeasonalOffsets(y, trend, cycle)

	// Residual spread against the full model (trend + season). The
	// population estimator (divide by n) keeps σ well defined for any
	// accepted series length.
	var sumSq float64
	for i, v := range y {
		r := v - (trend.At(i) + offsets[i%cycle])
		sumSq += r * r
	}
	sigma := math.Sqrt(sumSq / float64(len(y)))

	n := len(series)
	trainedAt := series[n-1].PeriodEnd

	results := make([]analytics.ForecastResult, 0, horizon)
	period := series[n-1].PeriodStart
	for h := 1; h <= horizon; h++ {
		period = timeseries.NextBucket(period, granularity)
		idx := n - 1 + h
		predicted := trend.At(idx) + offsets[idx%cycle]

		results = append(results, analytics.ForecastResult{
			TargetPeriod:     period,
			PredictedRevenue: predicted,
			LowerBound:       predicted - e.confidenceZ*sigma,
			UpperBound:       predicted + e.confidenceZ*sigma,
			ModelVersion:     analytics.ForecastModelVersion,
			TrainedAt:        trainedAt,
		})
	}

	return results, nil
}
