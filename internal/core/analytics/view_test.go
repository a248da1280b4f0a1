package analytics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prism-lab/project-prism/internal/core/timeseries"
	"github.com/stretchr/testify/require"
)

func writeView(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestViewRepository_LoadsRelativeView(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "last_quarter.yaml", `
name: "last_quarter"
granularity: "day"
range_days: 90
segment_count: 4
forecast_horizon: 14
`)

	repo, err := NewFileSystemViewRepository(dir)
	require.NoError(t, err)

	view, err := repo.Get("last_quarter")
	require.NoError(t, err)
	require.Equal(t, timeseries.GranularityDay, view.Granularity)
	require.Equal(t, 90, view.RangeDays)
	require.NotEmpty(t, view.Fingerprint)

	// Resolving against a mid-day now snaps the end to today's boundary.
	now := time.Date(2026, 2, 11, 15, 30, 0, 0, time.UTC)
	cfg := view.RunConfig(now)
	require.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), cfg.End)
	require.Equal(t, cfg.End.AddDate(0, 0, -90), cfg.Start)
	require.Equal(t, DefaultMovingAvgWindow, cfg.MovingAvgWindow)
	require.NoError(t, cfg.Validate())
}

func TestViewRepository_RelativeRangeStableWithinBucket(t *testing.T) {
	view := View{
		Name:            "daily",
		Granularity:     timeseries.GranularityDay,
		RangeDays:       30,
		SegmentCount:    3,
		ForecastHorizon: 7,
	}

	morning := view.RunConfig(time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC))
	evening := view.RunConfig(time.Date(2026, 2, 11, 22, 45, 0, 0, time.UTC))
	require.Equal(t, morning, evening)
}

func TestViewRepository_LoadsAbsoluteView(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "fy2025.yaml", `
name: "fy2025"
granularity: "month"
start: "2025-01-01"
end: "2026-01-01"
segment_count: 3
forecast_horizon: 12
trailing_window_days: 180
`)

	repo, err := NewFileSystemViewRepository(dir)
	require.NoError(t, err)

	view, err := repo.Get("fy2025")
	require.NoError(t, err)

	cfg := view.RunConfig(time.Now())
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), cfg.End)
	require.Equal(t, 180, cfg.TrailingWindowDays)
}

func TestViewRepository_RejectsInvalidViews(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad granularity", body: "name: v\ngranularity: hour\nrange_days: 30\nsegment_count: 2\nforecast_horizon: 7\n"},
		{name: "zero segments", body: "name: v\ngranularity: day\nrange_days: 30\nsegment_count: 0\nforecast_horizon: 7\n"},
		{name: "zero horizon", body: "name: v\ngranularity: day\nrange_days: 30\nsegment_count: 2\nforecast_horizon: 0\n"},
		{name: "no range", body: "name: v\ngranularity: day\nsegment_count: 2\nforecast_horizon: 7\n"},
		{name: "both range modes", body: "name: v\ngranularity: day\nrange_days: 30\nstart: \"2025-01-01\"\nend: \"2025-02-01\"\nsegment_count: 2\nforecast_horizon: 7\n"},
		{name: "start after end", body: "name: v\ngranularity: day\nstart: \"2025-02-01\"\nend: \"2025-01-01\"\nsegment_count: 2\nforecast_horizon: 7\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeView(t, dir, "v.yaml", tc.body)

			_, err := NewFileSystemViewRepository(dir)
			require.Error(t, err)
		})
	}
}

func TestViewRepository_RejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	body := "name: dup\ngranularity: day\nrange_days: 30\nsegment_count: 2\nforecast_horizon: 7\n"
	writeView(t, dir, "a.yaml", body)
	writeView(t, dir, "b.yaml", body)

	_, err := NewFileSystemViewRepository(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate view name")
}

func TestViewRepository_MissingDirYieldsZeroViews(t *testing.T) {
	repo, err := NewFileSystemViewRepository(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.Empty(t, repo.Views())
}

func TestViewRepository_ViewsSortedByName(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "b.yaml", "name: beta\ngranularity: day\nrange_days: 7\nsegment_count: 2\nforecast_horizon: 7\n")
	writeView(t, dir, "a.yaml", "name: alpha\ngranularity: day\nrange_days: 7\nsegment_count: 2\nforecast_horizon: 7\n")

	repo, err := NewFileSystemViewRepository(dir)
	require.NoError(t, err)

	views := repo.Views()
	require.Len(t, views, 2)
	require.Equal(t, "alpha", views[0].Name)
	require.Equal(t, "beta", views[1].Name)
}
