package segment

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	"github.com/prism-lab/project-prism/internal/store"
)

// DeriveFeatures computes one RFM vector per active customer as of the
// snapshot. Activity is judged over the trailing window
// [snapshot - trailingWindowDays, snapshot], both bounds inclusive.
// Roster customers with no transactions in the window come back in the
// inactive list; customers appearing only in transactions are still
// scored. Both results are sorted by customer id.
func DeriveFeatures(
	txs []store.Transaction,
	customers []store.CustomerRecord,
	snapshot time.Time,
	trailingWindowDays int,
) ([]analytics.CustomerFeatureVector, []int64) {
	windowStart := snapshot.AddDate(0, 0, -trailingWindowDays)

	type accum struct {
		last      time.Time
		frequency int64
		monetary  decimal.Decimal
	}

	active := make(map[int64]*accum)
	for _, tx := range txs {
		at := tx.OccurredAt.UTC()
		if at.Before(windowStart) || at.After(snapshot) {
			continue
		}

		a, ok := active[tx.CustomerID]
		if !ok {
			a = &accum{monetary: decimal.Zero}
			active[tx.CustomerID] = a
		}
		if at.After(a.last) {
			a.last = at
		}
		a.frequency++
		a.monetary = a.monetary.Add(tx.Amount())
	}

	var inactive []int64
	for _, c := range customers {
		if _, ok := active[c.ID]; !ok {
			inactive = append(inactive, c.ID)
		}
	}
	sort.Slice(inactive, func(i, j int) bool { return inactive[i] < inactive[j] })

	vectors := make([]analytics.CustomerFeatureVector, 0, len(active))
	for id, a := range active {
		vectors = append(vectors, analytics.CustomerFeatureVector{
			CustomerID:     id,
			RecencyDays:    snapshot.Sub(a.last).Hours() / 24,
			FrequencyCount: a.frequency,
			MonetaryTotal:  a.monetary,
		})
	}
	sort.Slice(vectors, func(i, j int) bool { return vectors[i].CustomerID < vectors[j].CustomerID })

	return vectors, inactive
}

// Point is one customer's position in normalized feature space.
type Point struct {
	CustomerID int64
	Recency    float64
	Frequency  float64
	Monetary   float64
}

// Normalize z-scores each feature across the population so no feature
// dominates the distance metric on scale alone. A feature with zero
// variance contributes 0 uniformly.
func Normalize(vectors []analytics.CustomerFeatureVector) []Point {
	n := len(vectors)
	if n == 0 {
		return nil
	}

	raw := make([][3]float64, n)
	for i, v := range vectors {
		raw[i] = [3]float64{
			v.RecencyDays,
			float64(v.FrequencyCount),
			v.MonetaryTotal.InexactFloat64(),
		}
	}

	var mean, std [3]float64
	for d := 0; d < 3; d++ {
		for i := range raw {
			mean[d] += raw[i][d]
		}
		mean[d] /= float64(n)

		var variance float64
		for i := range raw {
			diff := raw[i][d] - mean[d]
			variance += diff * diff
		}
		std[d] = math.Sqrt(variance / float64(n))
	}

	points := make([]Point, n)
	for i, v := range vectors {
		var z [3]float64
		for d := 0; d < 3; d++ {
			if std[d] > 0 {
				z[d] = (raw[i][d] - mean[d]) / std[d]
			}
		}
		points[i] = Point{
			CustomerID: v.CustomerID,
			Recency:    z[0],
			Frequency:  z[1],
			Monetary:   z[2],
		}
	}

	return points
}
