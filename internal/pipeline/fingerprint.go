package pipeline

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	"github.com/prism-lab/project-prism/internal/store"
)

// Fingerprint hashes the effective run configuration together with the
// record-set extent. Two runs with equal fingerprints read the same
// rows under the same parameters, so their artifacts are
// interchangeable and the later run can be served from cache.
// confidenceZ and topProducts are process-level settings that still
// shape artifacts, so they participate in the hash.
//
// The canonical string pins field order and formats. Changing either
// invalidates every cached run, which is the safe failure mode.
func Fingerprint(cfg analytics.RunConfig, extent store.Extent, confidenceZ float64, topProducts int) string {
	canonical := fmt.Sprintf(
		"granularity=%s|start=%s|end=%s|k=%d|horizon=%d|ma_window=%d|trailing_days=%d|z=%g|top_n=%d|max_tx_id=%d|row_count=%d",
		cfg.Granularity,
		cfg.Start.UTC().Format(time.RFC3339Nano),
		cfg.End.UTC().Format(time.RFC3339Nano),
		cfg.SegmentCount,
		cfg.ForecastHorizon,
		cfg.MovingAvgWindow,
		cfg.TrailingWindowDays,
		confidenceZ,
		topProducts,
		extent.MaxTransactionID,
		extent.RowCount,
	)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(canonical)))
}

// shortHash trims an inputs hash for log lines.
func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
