package analytics

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prism-lab/project-prism/internal/core/timeseries"
	"gopkg.in/yaml.v3"
)

// View is a named pipeline configuration preset. Views are loaded at
// startup from YAML files and fingerprinted for staleness detection.
// A view resolves to a RunConfig either from a relative trailing range
// (RangeDays before the current bucket boundary) or an absolute range.
type View struct {
	Name               string
	Granularity        timeseries.Granularity
	RangeDays          int       // relative range mode; 0 means absolute
	Start              time.Time // absolute range mode
	End                time.Time
	SegmentCount       int
	ForecastHorizon    int
	MovingAvgWindow    int
	TrailingWindowDays int
	Fingerprint        string // SHA-256 of the raw YAML file; computed at load time
}

// rawView is the on-disk YAML shape.
type rawView struct {
	Name               string `yaml:"name"`
	Granularity        string `yaml:"granularity"`
	RangeDays          int    `yaml:"range_days"`
	Start              string `yaml:"start"` // YYYY-MM-DD
	End                string `yaml:"end"`
	SegmentCount       int    `yaml:"segment_count"`
	ForecastHorizon    int    `yaml:"forecast_horizon"`
	MovingAvgWindow    int    `yaml:"moving_average_window"`
	TrailingWindowDays int    `yaml:"trailing_window_days"`
}

// RunConfig resolves the view against now. Relative views snap the end
// to the current bucket boundary so the effective range (and therefore
// the inputs hash) stays stable while the current period is still
// filling.
func (v View) RunConfig(now time.Time) RunConfig {
	cfg := RunConfig{
		Granularity:        v.Granularity,
		Start:              v.Start,
		End:                v.End,
		SegmentCount:       v.SegmentCount,
		ForecastHorizon:    v.ForecastHorizon,
		MovingAvgWindow:    v.MovingAvgWindow,
		TrailingWindowDays: v.TrailingWindowDays,
	}
	if v.RangeDays > 0 {
		end := timeseries.BucketStart(now, v.Granularity)
		cfg.End = end
		cfg.Start = end.AddDate(0, 0, -v.RangeDays)
	}
	return cfg.Normalized()
}

// ViewRepository is the lookup interface the projection API consumes.
type ViewRepository interface {
	// Get returns the view with the given name, or an error if not found.
	Get(name string) (View, error)

	// Views returns all loaded views sorted by name.
	Views() []View
}

// FileSystemViewRepository loads view presets from *.yaml files in a
// directory. Each file contains exactly one view at the top level.
// Views are loaded once at startup and cached in memory.
type FileSystemViewRepository struct {
	dir   string
	views map[string]View // keyed by Name
}

// NewFileSystemViewRepository creates a repository and eagerly loads
// all views from dir. Returns an error if any view file is malformed
// or invalid. A missing directory is valid and yields zero views.
func NewFileSystemViewRepository(dir string) (*FileSystemViewRepository, error) {
	repo := &FileSystemViewRepository{
		dir:   dir,
		views: make(map[string]View),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemViewRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("view dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("view path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading view dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading view file %s: %w", path, err)
		}

		var raw rawView
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing view file %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // skip empty / comment-only files
		}

		view, err := raw.toView()
		if err != nil {
			return fmt.Errorf("view %q (%s): %w", raw.Name, path, err)
		}
		view.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))

		if _, exists := r.views[view.Name]; exists {
			return fmt.Errorf("view %q: duplicate view name (check multiple YAML files)", view.Name)
		}
		r.views[view.Name] = view
	}
	return nil
}

func (raw rawView) toView() (View, error) {
	g, err := timeseries.ParseGranularity(raw.Granularity)
	if err != nil {
		return View{}, err
	}
	if raw.SegmentCount < 1 {
		return View{}, fmt.Errorf("segment_count must be >= 1, got %d", raw.SegmentCount)
	}
	if raw.ForecastHorizon < 1 {
		return View{}, fmt.Errorf("forecast_horizon must be >= 1, got %d", raw.ForecastHorizon)
	}

	view := View{
		Name:               raw.Name,
		Granularity:        g,
		RangeDays:          raw.RangeDays,
		SegmentCount:       raw.SegmentCount,
		ForecastHorizon:    raw.ForecastHorizon,
		MovingAvgWindow:    raw.MovingAvgWindow,
		TrailingWindowDays: raw.TrailingWindowDays,
	}

	hasAbsolute := raw.Start != "" || raw.End != ""
	switch {
	case raw.RangeDays > 0 && hasAbsolute:
		return View{}, fmt.Errorf("range_days and start/end are mutually exclusive")
	case raw.RangeDays > 0:
		return view, nil
	case hasAbsolute:
		start, err := time.ParseInLocation("2006-01-02", raw.Start, time.UTC)
		if err != nil {
			return View{}, fmt.Errorf("invalid start %q: %w", raw.Start, err)
		}
		end, err := time.ParseInLocation("2006-01-02", raw.End, time.UTC)
		if err != nil {
			return View{}, fmt.Errorf("invalid end %q: %w", raw.End, err)
		}
		if start.After(end) {
			return View{}, fmt.Errorf("start %s is after end %s", raw.Start, raw.End)
		}
		view.Start = start
		view.End = end
		return view, nil
	default:
		return View{}, fmt.Errorf("either range_days or start/end is required")
	}
}

// Get returns the view with the given name, or an error if not found.
func (r *FileSystemViewRepository) Get(name string) (View, error) {
	view, ok := r.views[name]
	if !ok {
		return View{}, fmt.Errorf("view %q not found", name)
	}
	return view, nil
}

// Views returns all loaded views sorted by name.
func (r *FileSystemViewRepository) Views() []View {
	views := make([]View, 0, len(r.views))
	for _, view := range r.views {
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}
