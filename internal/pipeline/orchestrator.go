// Package pipeline coordinates analytics runs: fingerprinting inputs,
// collapsing duplicate work, executing the stage graph, and publishing
// immutable result sets.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/prism-lab/project-prism/internal/aggregate"
	"github.com/prism-lab/project-prism/internal/core/analytics"
	apperr "github.com/prism-lab/project-prism/internal/core/errors"
	"github.com/prism-lab/project-prism/internal/forecast"
	"github.com/prism-lab/project-prism/internal/metrics"
	"github.com/prism-lab/project-prism/internal/segment"
	"github.com/prism-lab/project-prism/internal/store"
)

// Stage names recorded on failed runs.
const (
	StageFetch     = "fetch"
	StageAggregate = "aggregate"
	StageSegment   = "segment"
	StageForecast  = "forecast"
)

// DefaultTopProducts bounds the product ranking artifact.
const DefaultTopProducts = 5

// Options carries engine settings that are process configuration
// rather than per-run inputs. They still shape the artifacts, so
// Fingerprint folds them into the inputs hash.
type Options struct {
	ConfidenceZ   float64
	TopProducts   int
	MaxIterations int
}

func (o Options) normalized() Options {
	if o.ConfidenceZ <= 0 {
		o.ConfidenceZ = forecast.DefaultConfidenceZ
	}
	if o.TopProducts < 1 {
		o.TopProducts = DefaultTopProducts
	}
	if o.MaxIterations < 1 {
		o.MaxIterations = segment.DefaultMaxIterations
	}
	return o
}

// runEntry pairs a run record with its artifacts. results stays nil
// unless the run succeeded; failed runs never publish partial sets.
type runEntry struct {
	run     analytics.PipelineRun
	results *analytics.ResultSet
}

// Orchestrator executes analytics runs against a record store and
// caches their artifacts by inputs hash, in memory, for the lifetime
// of the process.
type Orchestrator struct {
	records   store.RecordStore
	segments  *segment.Engine
	forecasts *forecast.Engine
	opts      Options

	mu     sync.Mutex
	byHash map[string]*runEntry // latest run per inputs hash
	byID   map[string]*runEntry // every run started by this process

	group singleflight.Group // dedupe concurrent identical runs

	nowFn func() time.Time
}

// NewOrchestrator creates an orchestrator over the given record store.
func NewOrchestrator(records store.RecordStore, opts Options) *Orchestrator {
	opts = opts.normalized()
	return &Orchestrator{
		records:   records,
		segments:  segment.NewEngine(opts.MaxIterations),
		forecasts: forecast.NewEngine(opts.ConfidenceZ),
		opts:      opts,
		byHash:    make(map[string]*runEntry),
		byID:      make(map[string]*runEntry),
		nowFn:     time.Now,
	}
}

// Run executes or deduplicates an analytics run for cfg.
//
// Validation failures and extent-read failures surface as errors
// before any run is recorded. Otherwise the returned PipelineRun is
// terminal: succeeded, or failed with its stage and error kind — stage
// failures are part of the run record, not the error return. A
// previously succeeded run with the same inputs hash is returned
// as-is; failed hashes are always retried. Concurrent callers with
// the same hash share one execution and observe the same run.
func (o *Orchestrator) Run(ctx context.Context, cfg analytics.RunConfig) (analytics.PipelineRun, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return analytics.PipelineRun{}, err
	}

	extent, err := o.records.TransactionExtent(ctx, cfg.Start, cfg.End)
	if err != nil {
		return analytics.PipelineRun{}, err
	}

	hash := Fingerprint(cfg, extent, o.opts.ConfidenceZ, o.opts.TopProducts)

	if run, ok := o.cachedSuccess(hash); ok {
		metrics.ObserveCacheHit()
		slog.Info("[Pipeline] Serving run from cache",
			"inputs_hash", shortHash(hash),
			"run_id", run.RunID)
		return run, nil
	}

	result, err, _ := o.group.Do(hash, func() (interface{}, error) {
		// Double-check after winning the flight: another caller may
		// have published this hash while we queued.
		if run, ok := o.cachedSuccess(hash); ok {
			metrics.ObserveCacheHit()
			return run, nil
		}
		return o.execute(ctx, cfg, hash), nil
	})
	if err != nil {
		return analytics.PipelineRun{}, err
	}

	return result.(analytics.PipelineRun), nil
}

// LatestRun returns the most recent run for cfg's current inputs hash,
// reading the extent to resolve the hash. ok is false when no run with
// that hash has been recorded.
func (o *Orchestrator) LatestRun(ctx context.Context, cfg analytics.RunConfig) (analytics.PipelineRun, bool, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return analytics.PipelineRun{}, false, err
	}

	extent, err := o.records.TransactionExtent(ctx, cfg.Start, cfg.End)
	if err != nil {
		return analytics.PipelineRun{}, false, err
	}

	hash := Fingerprint(cfg, extent, o.opts.ConfidenceZ, o.opts.TopProducts)

	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.byHash[hash]
	if !ok {
		return analytics.PipelineRun{}, false, nil
	}
	return entry.run, true, nil
}

// GetRun returns the run record for a run id.
func (o *Orchestrator) GetRun(runID string) (analytics.PipelineRun, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.byID[runID]
	if !ok {
		return analytics.PipelineRun{}, false
	}
	return entry.run, true
}

// Results returns the published artifacts of a run. The ResultSet is
// nil unless the run succeeded.
func (o *Orchestrator) Results(runID string) (*analytics.ResultSet, analytics.PipelineRun, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.byID[runID]
	if !ok {
		return nil, analytics.PipelineRun{}, false
	}
	return entry.results, entry.run, true
}

func (o *Orchestrator) cachedSuccess(hash string) (analytics.PipelineRun, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.byHash[hash]
	if !ok || entry.run.Status != analytics.StatusSucceeded {
		return analytics.PipelineRun{}, false
	}
	return entry.run, true
}

// execute runs the stage graph and records a terminal run either way.
// Artifacts are attached only on success, under the same lock that
// flips the status, so readers never observe a partial result set.
func (o *Orchestrator) execute(ctx context.Context, cfg analytics.RunConfig, hash string) analytics.PipelineRun {
	entry := &runEntry{
		run: analytics.PipelineRun{
			RunID:      uuid.NewString(),
			InputsHash: hash,
			Status:     analytics.StatusRunning,
			StartedAt:  o.nowFn().UTC(),
		},
	}

	o.mu.Lock()
	o.byHash[hash] = entry
	o.byID[entry.run.RunID] = entry
	o.mu.Unlock()

	slog.Info("[Pipeline] Run started",
		"run_id", entry.run.RunID,
		"inputs_hash", shortHash(hash),
		"granularity", string(cfg.Granularity),
		"start", cfg.Start.Format(time.RFC3339),
		"end", cfg.End.Format(time.RFC3339))

	results, runErr := o.runStages(ctx, cfg, hash)

	finished := o.nowFn().UTC()

	o.mu.Lock()
	defer o.mu.Unlock()

	entry.run.FinishedAt = &finished

	if runErr != nil {
		entry.run.Status = analytics.StatusFailed
		entry.run.ErrorKind = apperr.Kind(runErr)
		entry.run.Error = runErr.Error()

		var stageErr *apperr.StageError
		if errors.As(runErr, &stageErr) {
			entry.run.FailedStage = stageErr.Stage
		}

		metrics.ObserveRun(finished.Sub(entry.run.StartedAt), metrics.OutcomeFailed)
		slog.Error("[Pipeline] Run failed",
			"run_id", entry.run.RunID,
			"stage", entry.run.FailedStage,
			"error_kind", entry.run.ErrorKind,
			"error", runErr)
		return entry.run
	}

	entry.run.Status = analytics.StatusSucceeded
	entry.results = results

	metrics.ObserveRun(finished.Sub(entry.run.StartedAt), metrics.OutcomeSucceeded)
	slog.Info("[Pipeline] Run succeeded",
		"run_id", entry.run.RunID,
		"duration", finished.Sub(entry.run.StartedAt).String(),
		"buckets", len(results.Aggregates),
		"segments", len(results.Segmentation.Segments),
		"forecast_periods", len(results.Forecast))
	return entry.run
}

// runStages executes fetch → aggregate → {segment ∥ forecast} and
// assembles the result set. Any stage failure aborts the whole run.
func (o *Orchestrator) runStages(ctx context.Context, cfg analytics.RunConfig, hash string) (*analytics.ResultSet, error) {
	// Segmentation looks back TrailingWindowDays behind the range end,
	// so fetch the union of both windows in one pass.
	fetchStart := cfg.End.AddDate(0, 0, -cfg.TrailingWindowDays)
	if cfg.Start.Before(fetchStart) {
		fetchStart = cfg.Start
	}

	stageStart := o.nowFn()
	txs, err := o.records.FetchTransactions(ctx, fetchStart, cfg.End)
	if err != nil {
		return nil, &apperr.StageError{Stage: StageFetch, Hash: hash, Err: err}
	}
	customers, err := o.records.FetchCustomers(ctx)
	if err != nil {
		return nil, &apperr.StageError{Stage: StageFetch, Hash: hash, Err: err}
	}
	products, err := o.records.FetchProducts(ctx)
	if err != nil {
		return nil, &apperr.StageError{Stage: StageFetch, Hash: hash, Err: err}
	}
	metrics.ObserveStage(StageFetch, o.nowFn().Sub(stageStart))

	// The series and rollups only see the analysis range; the wider
	// fetch exists for the segmentation window.
	rangeTxs := make([]store.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.OccurredAt.Before(cfg.Start) && tx.OccurredAt.Before(cfg.End) {
			rangeTxs = append(rangeTxs, tx)
		}
	}

	stageStart = o.nowFn()
	series, err := aggregate.BuildSeries(rangeTxs, cfg.Start, cfg.End, cfg.Granularity, cfg.MovingAvgWindow)
	if err != nil {
		return nil, &apperr.StageError{Stage: StageAggregate, Hash: hash, Err: err}
	}
	summary := aggregate.Summarize(rangeTxs)
	topProducts := aggregate.TopProducts(rangeTxs, products, o.opts.TopProducts)
	margins := aggregate.CategoryMargins(rangeTxs, products)
	metrics.ObserveStage(StageAggregate, o.nowFn().Sub(stageStart))

	var (
		segmentation analytics.SegmentationResult
		projections  []analytics.ForecastResult
	)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		start := o.nowFn()
		result, err := o.segments.Segment(egCtx, txs, customers, cfg.End, cfg.SegmentCount, cfg.TrailingWindowDays)
		if err != nil {
			return &apperr.StageError{Stage: StageSegment, Hash: hash, Param: "segment_count", Err: err}
		}
		segmentation = result
		metrics.ObserveStage(StageSegment, o.nowFn().Sub(start))
		return nil
	})

	eg.Go(func() error {
		start := o.nowFn()
		result, err := o.forecasts.Forecast(series, cfg.ForecastHorizon)
		if err != nil {
			return &apperr.StageError{Stage: StageForecast, Hash: hash, Err: err}
		}
		projections = result
		metrics.ObserveStage(StageForecast, o.nowFn().Sub(start))
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &analytics.ResultSet{
		Aggregates:   series,
		Segmentation: segmentation,
		Forecast:     projections,
		Summary:      summary,
		TopProducts:  topProducts,
		Margins:      margins,
	}, nil
}
