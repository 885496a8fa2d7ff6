//go:build fastmath

package meter

import "github.com/meko-christian/algo-approx"

func mathSqrt(x float64) float64 { return approx.FastSqrt(x) }
