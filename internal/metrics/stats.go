// Package metrics holds the numeric scoring helpers and the hierarchical
// aggregator that turns a finished record store into a metric report.
package metrics

import "math"

// Mean computes the arithmetic mean of a float64 slice.
// Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance computes the population variance of a float64 slice.
// Returns 0 for empty input.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

// StdDev computes the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// KendallTau computes Kendall's rank correlation between two equal-length
// integer sequences without ties (tau-a). Returns NaN for sequences shorter
// than two elements.
func KendallTau(x, y []int) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}
	concordant := 0
	discordant := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a := x[i] - x[j]
			b := y[i] - y[j]
			switch {
			case a*b > 0:
				concordant++
			case a*b < 0:
				discordant++
			}
		}
	}
	pairs := n * (n - 1) / 2
	return float64(concordant-discordant) / float64(pairs)
}
