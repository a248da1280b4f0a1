// Package projection serves the published outputs of analytics runs
// over HTTP. It is strictly read-through: every artifact it returns
// was produced and published by the pipeline, never computed here.
package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	apperr "github.com/prism-lab/project-prism/internal/core/errors"
	"github.com/prism-lab/project-prism/internal/core/timeseries"
)

// RunCoordinator is the orchestration surface the projection API
// consumes. *pipeline.Orchestrator satisfies it.
type RunCoordinator interface {
	Run(ctx context.Context, cfg analytics.RunConfig) (analytics.PipelineRun, error)
	LatestRun(ctx context.Context, cfg analytics.RunConfig) (analytics.PipelineRun, bool, error)
	GetRun(runID string) (analytics.PipelineRun, bool)
	Results(runID string) (*analytics.ResultSet, analytics.PipelineRun, bool)
}

// Service implements the projection/query layer over the run
// coordinator and the loaded view presets.
type Service struct {
	runs  RunCoordinator
	views analytics.ViewRepository
	nowFn func() time.Time
}

// NewService creates a new projection service.
func NewService(runs RunCoordinator, views analytics.ViewRepository) *Service {
	return &Service{
		runs:  runs,
		views: views,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// resolveConfig turns a trigger request into an effective run
// configuration. Unknown views and malformed inline configs are
// invalid_config; deeper validation happens when the run starts.
func (s *Service) resolveConfig(req TriggerRunRequest) (analytics.RunConfig, error) {
	switch {
	case req.View != "" && req.Config != nil:
		return analytics.RunConfig{}, fmt.Errorf("%w: view and config are mutually exclusive", apperr.ErrInvalidConfig)
	case req.View != "":
		view, err := s.views.Get(req.View)
		if err != nil {
			return analytics.RunConfig{}, fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
		}
		return view.RunConfig(s.nowFn()), nil
	case req.Config != nil:
		return req.Config.toRunConfig()
	default:
		return analytics.RunConfig{}, fmt.Errorf("%w: either view or config is required", apperr.ErrInvalidConfig)
	}
}

func (in RunConfigInput) toRunConfig() (analytics.RunConfig, error) {
	granularity, err := timeseries.ParseGranularity(in.Granularity)
	if err != nil {
		return analytics.RunConfig{}, err
	}
	start, err := time.ParseInLocation("2006-01-02", in.Start, time.UTC)
	if err != nil {
		return analytics.RunConfig{}, fmt.Errorf("%w: invalid start %q (want YYYY-MM-DD)", apperr.ErrInvalidConfig, in.Start)
	}
	end, err := time.ParseInLocation("2006-01-02", in.End, time.UTC)
	if err != nil {
		return analytics.RunConfig{}, fmt.Errorf("%w: invalid end %q (want YYYY-MM-DD)", apperr.ErrInvalidConfig, in.End)
	}

	return analytics.RunConfig{
		Granularity:        granularity,
		Start:              start,
		End:                end,
		SegmentCount:       in.SegmentCount,
		ForecastHorizon:    in.ForecastHorizon,
		MovingAvgWindow:    in.MovingAvgWindow,
		TrailingWindowDays: in.TrailingWindowDays,
	}.Normalized(), nil
}

func summarizeView(v analytics.View) ViewSummary {
	summary := ViewSummary{
		Name:               v.Name,
		Granularity:        string(v.Granularity),
		RangeDays:          v.RangeDays,
		SegmentCount:       v.SegmentCount,
		ForecastHorizon:    v.ForecastHorizon,
		MovingAvgWindow:    v.MovingAvgWindow,
		TrailingWindowDays: v.TrailingWindowDays,
		Fingerprint:        v.Fingerprint,
	}
	if !v.Start.IsZero() {
		summary.Start = v.Start.Format("2006-01-02")
	}
	if !v.End.IsZero() {
		summary.End = v.End.Format("2006-01-02")
	}
	return summary
}
