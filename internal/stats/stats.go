// Package stats holds the summary statistics shared by search and training.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Median returns the middle value, averaging the two middle values for even
// lengths. The input is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// MeanStd returns the mean and population standard deviation.
func MeanStd(values []float64) (float64, float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	mean, variance := stat.MeanVariance(values, nil)
	n := float64(len(values))
	return mean, math.Sqrt(variance * (n - 1) / n)
}

// Mode returns the most frequent non-empty value. Ties go to the value that
// sorts first so results are stable.
func Mode(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}

	best, bestCount := "", 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}

// RMSE returns the root mean squared error between predictions and targets.
func RMSE(predicted, actual []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	return floats.Distance(predicted, actual, 2) / math.Sqrt(float64(len(actual)))
}

// R2 returns the coefficient of determination. A constant target yields 0.
func R2(predicted, actual []float64) float64 {
	if len(actual) == 0 || floats.Max(actual) == floats.Min(actual) {
		return 0
	}
	return stat.RSquaredFrom(predicted, actual, nil)
}
