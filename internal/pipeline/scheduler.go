package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/prism-lab/project-prism/internal/core/analytics"
)

// Scheduler re-runs a named view on a periodic interval so the
// dashboard always finds a warm result. It is stateless: each tick
// resolves the view against the current clock and defers to the run
// cache, so a tick inside an unchanged bucket is a cheap cache hit.
type Scheduler struct {
	interval time.Duration
	orch     *Orchestrator
	views    analytics.ViewRepository
	viewName string

	nowFn func() time.Time
}

// NewScheduler creates a refresh scheduler for one view.
func NewScheduler(interval time.Duration, orch *Orchestrator, views analytics.ViewRepository, viewName string) *Scheduler {
	return &Scheduler{
		interval: interval,
		orch:     orch,
		views:    views,
		viewName: viewName,
		nowFn:    time.Now,
	}
}

// Start begins periodic view refreshes.
// Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting view refresh scheduler",
		"interval", s.interval,
		"view", s.viewName,
	)

	// Warm the cache immediately instead of waiting out the first tick.
	s.refresh(ctx)

	for {
		select {
		case <-ticker.C:
			s.refresh(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)", "view", s.viewName)
			return nil
		}
	}
}

// refresh resolves the view and runs it. Failures are logged, never
// fatal: the next tick retries with fresh inputs.
func (s *Scheduler) refresh(ctx context.Context) {
	view, err := s.views.Get(s.viewName)
	if err != nil {
		slog.Error("[Scheduler] View lookup failed", "view", s.viewName, "error", err)
		return
	}

	run, err := s.orch.Run(ctx, view.RunConfig(s.nowFn()))
	if err != nil {
		slog.Error("[Scheduler] Refresh failed before run start", "view", s.viewName, "error", err)
		return
	}

	if run.Status == analytics.StatusFailed {
		slog.Warn("[Scheduler] Refresh run failed",
			"view", s.viewName,
			"run_id", run.RunID,
			"stage", run.FailedStage,
			"error_kind", run.ErrorKind,
		)
		return
	}

	slog.Info("[Scheduler] View refreshed",
		"view", s.viewName,
		"run_id", run.RunID,
		"inputs_hash", shortHash(run.InputsHash),
	)
}
