package usecase

import (
	"sort"

	"github.com/discounthunter/backend/internal/domain"
)

// outlierMultiplier widens the IQR fence; store search pages sometimes surface
// an unrelated bundle price that would otherwise skew the summary.
const outlierMultiplier = 2.0

// ComputeStats summarises the positive prices of a quote set after IQR outlier removal
func ComputeStats(quotes []domain.Quote) domain.PriceStats {
	prices := make([]float64, 0, len(quotes))
	for _, q := range quotes {
		if q.Price > 0 {
			prices = append(prices, q.Price)
		}
	}
	prices = removeOutliers(prices, outlierMultiplier)
	if len(prices) == 0 {
		return domain.PriceStats{}
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	var sum float64
	for _, p := range sorted {
		sum += p
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return domain.PriceStats{
		Count:  n,
		Min:    domain.Float64(sorted[0]),
		Max:    domain.Float64(sorted[n-1]),
		Mean:   domain.Float64(roundCents(sum / float64(n))),
		Median: domain.Float64(roundCents(median)),
	}
}

// removeOutliers drops values outside [q1 - k*iqr, q3 + k*iqr]. Fewer than four
// values, or a zero IQR, are returned unchanged.
func removeOutliers(values []float64, multiplier float64) []float64 {
	if len(values) < 4 {
		return values
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := sorted[len(sorted)/4]
	q3 := sorted[3*len(sorted)/4]
	iqr := q3 - q1
	if iqr == 0 {
		return values
	}

	lower := q1 - multiplier*iqr
	upper := q3 + multiplier*iqr

	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lower && v <= upper {
			kept = append(kept, v)
		}
	}
	return kept
}
