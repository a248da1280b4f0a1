package segment

import (
	"fmt"

	apperr "github.com/prism-lab/project-prism/internal/core/errors"
)

// Centroid is a cluster center in normalized feature space.
type Centroid struct {
	Recency   float64
	Frequency float64
	Monetary  float64
}

func (c Centroid) distanceSq(p Point) float64 {
	dr := p.Recency - c.Recency
	df := p.Frequency - c.Frequency
	dm := p.Monetary - c.Monetary
	return dr*dr + df*df + dm*dm
}

// Cluster runs Lloyd k-means with deterministic farthest-point seeding.
// Returns the final centroids and, parallel to points, the centroid
// index each point landed in. checkCancel is consulted once per
// iteration; a non-nil result aborts the run with that error.
//
// Determinism: the first seed is the point ranked highest by monetary,
// then recency, then frequency, then lowest customer id; each following
// seed is the point farthest from all chosen seeds (ties to the lowest
// customer id). Nearest-centroid ties resolve to the lowest centroid
// index. A centroid that loses all members keeps its previous position.
// Iteration stops at an assignment fixpoint or after maxIter passes.
func Cluster(points []Point, k, maxIter int, checkCancel func() error) ([]Centroid, []int, error) {
	if k < 1 {
		return nil, nil, fmt.Errorf("%w: segment count must be >= 1, got %d", apperr.ErrInvalidConfig, k)
	}
	if len(points) < k {
		return nil, nil, fmt.Errorf("%w: %d points for %d segments", apperr.ErrInsufficientData, len(points), k)
	}
	if maxIter < 1 {
		maxIter = DefaultMaxIterations
	}

	centroids := seedCentroids(points, k)

	assignments := make([]int, len(points))
	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		if checkCancel != nil {
			if err := checkCancel(); err != nil {
				return nil, nil, err
			}
		}

		changed := false
		for i, p := range points {
			best := 0
			bestDist := centroids[0].distanceSq(p)
			for c := 1; c < k; c++ {
				if d := centroids[c].distanceSq(p); d < bestDist {
					best = c
					bestDist = d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		sums := make([]Centroid, k)
		counts := make([]int, k)
		for i, p := range points {
			c := assignments[i]
			sums[c].Recency += p.Recency
			sums[c].Frequency += p.Frequency
			sums[c].Monetary += p.Monetary
			counts[c]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			centroids[c] = Centroid{
				Recency:   sums[c].Recency / float64(counts[c]),
				Frequency: sums[c].Frequency / float64(counts[c]),
				Monetary:  sums[c].Monetary / float64(counts[c]),
			}
		}
	}

	return centroids, assignments, nil
}

// seedCentroids picks k starting centroids by farthest-point traversal.
func seedCentroids(points []Point, k int) []Centroid {
	first := 0
	for i := 1; i < len(points); i++ {
		if seedRank(points[i], points[first]) {
			first = i
		}
	}

	taken := make([]bool, len(points))
	taken[first] = true

	centroids := make([]Centroid, 0, k)
	centroids = append(centroids, centroidAt(points[first]))

	minDist := make([]float64, len(points))
	for i, p := range points {
		minDist[i] = centroids[0].distanceSq(p)
	}

	for len(centroids) < k {
		next := -1
		for i, p := range points {
			if taken[i] {
				continue
			}
			switch {
			case next < 0 || minDist[i] > minDist[next]:
				next = i
			case minDist[i] == minDist[next] && p.CustomerID < points[next].CustomerID:
				next = i
			}
		}

		taken[next] = true
		c := centroidAt(points[next])
		centroids = append(centroids, c)

		for i, p := range points {
			if d := c.distanceSq(p); d < minDist[i] {
				minDist[i] = d
			}
		}
	}

	return centroids
}

// seedRank reports whether a outranks b as the first seed: higher
// monetary, then higher recency, then higher frequency, then lower
// customer id.
func seedRank(a, b Point) bool {
	if a.Monetary != b.Monetary {
		return a.Monetary > b.Monetary
	}
	if a.Recency != b.Recency {
		return a.Recency > b.Recency
	}
	if a.Frequency != b.Frequency {
		return a.Frequency > b.Frequency
	}
	return a.CustomerID < b.CustomerID
}

func centroidAt(p Point) Centroid {
	return Centroid{Recency: p.Recency, Frequency: p.Frequency, Monetary: p.Monetary}
}
