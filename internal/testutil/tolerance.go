// Package testutil holds numeric assertions and deterministic signals shared
// by the package tests.
package testutil

import (
	"math"
	"testing"
)

// RequireNear fails t if got and want differ by more than eps.
func RequireNear(t testing.TB, name string, got, want, eps float64) {
	t.Helper()
	if math.IsInf(want, 0) && got == want {
		return
	}
	if math.Abs(got-want) > eps || math.IsNaN(got) {
		t.Fatalf("%s = %v, want %v (eps %v)", name, got, want, eps)
	}
}

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t testing.TB, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(got[i] - want[i])
		if diff > eps || math.IsNaN(diff) {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t testing.TB, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// Peak returns the largest absolute sample in data.
func Peak(data []float64) float64 {
	var p float64
	for _, v := range data {
		if a := math.Abs(v); a > p {
			p = a
		}
	}
	return p
}

// RMS returns the root mean square of data.
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var s float64
	for _, v := range data {
		s += v * v
	}
	return math.Sqrt(s / float64(len(data)))
}
