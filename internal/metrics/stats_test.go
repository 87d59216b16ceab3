package metrics

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 5.0},
		{"multiple", []float64{1, 2, 3, 4, 5}, 3.0},
		{"all_same", []float64{7, 7, 7}, 7.0},
		{"negative", []float64{-2, 0, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mean(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Mean(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 0},
		{"uniform", []float64{3, 3, 3}, 0},
		{"simple", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Variance(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Variance(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 0},
		{"simple", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StdDev(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("StdDev(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestKendallTau(t *testing.T) {
	tests := []struct {
		name   string
		x      []int
		y      []int
		expect float64
	}{
		{"identical", []int{0, 1, 2, 3}, []int{0, 1, 2, 3}, 1.0},
		{"reversed", []int{0, 1, 2, 3}, []int{3, 2, 1, 0}, -1.0},
		{"one_swap", []int{0, 1, 2, 3}, []int{1, 0, 2, 3}, 2.0 / 3.0},
		{"two_swaps", []int{0, 1, 2, 3}, []int{1, 0, 3, 2}, 1.0 / 3.0},
		{"uncorrelated", []int{0, 1, 2, 3}, []int{1, 3, 0, 2}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KendallTau(tt.x, tt.y)
			if !approxEqual(got, tt.expect) {
				t.Errorf("KendallTau(%v, %v) = %f, want %f", tt.x, tt.y, got, tt.expect)
			}
		})
	}
}

func TestKendallTau_DegenerateInputs(t *testing.T) {
	if !math.IsNaN(KendallTau(nil, nil)) {
		t.Error("KendallTau(nil, nil) should be NaN")
	}
	if !math.IsNaN(KendallTau([]int{1}, []int{1})) {
		t.Error("KendallTau of single-element sequences should be NaN")
	}
	if !math.IsNaN(KendallTau([]int{1, 2}, []int{1})) {
		t.Error("KendallTau of mismatched lengths should be NaN")
	}
}
