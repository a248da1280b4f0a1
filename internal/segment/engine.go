// Package segment derives RFM feature vectors (recency, frequency,
// monetary) from sales records and clusters customers with Lloyd
// k-means. Everything is deterministic: identical inputs produce
// identical segments with identical numbering.
package segment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	apperr "github.com/prism-lab/project-prism/internal/core/errors"
	"github.com/prism-lab/project-prism/internal/store"
)

// DefaultMaxIterations caps Lloyd iterations when convergence stalls.
const DefaultMaxIterations = 100

// Engine runs RFM segmentation end to end.
type Engine struct {
	maxIterations int
}

// NewEngine creates a segmentation engine. maxIterations < 1 selects
// the default cap.
func NewEngine(maxIterations int) *Engine {
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}
	return &Engine{maxIterations: maxIterations}
}

// Segment derives feature vectors as of the snapshot, clusters the
// active customers into k segments, and numbers the result so that
// segment 0 always holds the highest mean monetary value. Published
// centroids are means of the members' raw features (days, transaction
// counts, revenue), not the normalized coordinates clustering ran on.
//
// Returns ErrInsufficientData when fewer than k customers were active
// in the trailing window. Cancellation is checked between Lloyd
// iterations and surfaces as the context's error.
func (e *Engine) Segment(
	ctx context.Context,
	txs []store.Transaction,
	customers []store.CustomerRecord,
	snapshot time.Time,
	k, trailingWindowDays int,
) (analytics.SegmentationResult, error) {
	vectors, inactive := DeriveFeatures(txs, customers, snapshot, trailingWindowDays)
	if len(vectors) < k {
		return analytics.SegmentationResult{}, fmt.Errorf(
			"%w: %d active customers in trailing window for %d segments",
			apperr.ErrInsufficientData, len(vectors), k)
	}

	points := Normalize(vectors)

	_, assignments, err := Cluster(points, k, e.maxIterations, ctx.Err)
	if err != nil {
		return analytics.SegmentationResult{}, err
	}

	// Vectors are sorted by customer id, so per-segment member lists
	// come out sorted without another pass.
	members := make([][]int64, k)
	sums := make([]analytics.SegmentCentroid, k)
	for i, v := range vectors {
		c := assignments[i]
		members[c] = append(members[c], v.CustomerID)
		sums[c].RecencyDays += v.RecencyDays
		sums[c].FrequencyCount += float64(v.FrequencyCount)
		sums[c].MonetaryTotal += v.MonetaryTotal.InexactFloat64()
	}

	segments := make([]analytics.Segment, 0, k)
	for c := 0; c < k; c++ {
		seg := analytics.Segment{CustomerIDs: members[c]}
		if n := len(members[c]); n > 0 {
			seg.Centroid = analytics.SegmentCentroid{
				RecencyDays:    sums[c].RecencyDays / float64(n),
				FrequencyCount: sums[c].FrequencyCount / float64(n),
				MonetaryTotal:  sums[c].MonetaryTotal / float64(n),
			}
		}
		segments = append(segments, seg)
	}

	sort.SliceStable(segments, func(i, j int) bool {
		a, b := segments[i].Centroid, segments[j].Centroid
		if a.MonetaryTotal != b.MonetaryTotal {
			return a.MonetaryTotal > b.MonetaryTotal
		}
		if a.FrequencyCount != b.FrequencyCount {
			return a.FrequencyCount > b.FrequencyCount
		}
		return a.RecencyDays > b.RecencyDays
	})
	for i := range segments {
		segments[i].ID = i
	}

	return analytics.SegmentationResult{
		SnapshotAt:          snapshot,
		Segments:            segments,
		InactiveCustomerIDs: inactive,
	}, nil
}
