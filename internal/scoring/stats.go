package scoring

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// median averages the two middle values for even-length input, matching the
// usual spreadsheet definition. xs must be non-empty.
func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(xs []float64) float64 {
	return stat.Mean(xs, nil)
}

func sum(xs []float64) float64 {
	return floats.Sum(xs)
}

func minMax(xs []float64) (float64, float64) {
	return floats.Min(xs), floats.Max(xs)
}
