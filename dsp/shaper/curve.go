// Package shaper generates fixed-resolution transfer curves for waveshaper
// nodes: tape and console saturation, asymmetric tube drive, and the rack's
// distortion, overdrive and Chebyshev shapes.
package shaper

import (
	"fmt"
	"math"
	"strings"
)

// Size is the resolution of the channel strip curves.
const Size = 2048

// Func maps an input sample in [-1, 1] to an output sample.
type Func func(x float64) float64

// Generate samples f at n points, x = i*2/n - 1.
func Generate(n int, f Func) []float64 {
	if n <= 0 {
		n = Size
	}
	curve := make([]float64, n)
	for i := range curve {
		x := float64(i)*2/float64(n) - 1
		curve[i] = f(x)
	}
	return curve
}

// Saturation selects the character of the strip's saturation stage.
type Saturation int

const (
	Tape Saturation = iota
	Console
)

func (s Saturation) String() string {
	switch s {
	case Tape:
		return "tape"
	case Console:
		return "console"
	}
	return fmt.Sprintf("Saturation(%d)", int(s))
}

// ParseSaturation maps "tape" or "console" to a Saturation.
func ParseSaturation(s string) (Saturation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tape":
		return Tape, nil
	case "console":
		return Console, nil
	}
	return Tape, fmt.Errorf("shaper: unknown saturation type %q", s)
}

// SaturationCurve returns the curve for kind at the given drive.
func SaturationCurve(kind Saturation, drive float64) []float64 {
	if kind == Console {
		return Generate(Size, ConsoleFunc(drive))
	}
	return Generate(Size, TapeFunc(drive))
}

// TapeFunc is tanh(x * (drive*10 + 1)).
func TapeFunc(drive float64) Func {
	k := math.Max(1, drive*10+1)
	return func(x float64) float64 { return math.Tanh(x * k) }
}

// ConsoleFunc is a hard clip of x * (drive*5 + 1).
func ConsoleFunc(drive float64) Func {
	k := math.Max(1, drive*5+1)
	return func(x float64) float64 { return math.Max(-1, math.Min(1, x*k)) }
}

// TubeCurve returns the asymmetric tube curve at the given drive.
func TubeCurve(drive float64) []float64 {
	return Generate(Size, TubeFunc(drive))
}

// TubeFunc drives the negative half 20% softer than the positive half.
func TubeFunc(drive float64) Func {
	k := math.Max(1, drive*8+1)
	return func(x float64) float64 {
		if x >= 0 {
			return math.Tanh(x * k)
		}
		return math.Tanh(x * k * 0.8)
	}
}

// DistortionFunc is the classic (3+k)x*20deg/(pi+k|x|) curve with
// k = amount*100.
func DistortionFunc(amount float64) Func {
	k := math.Max(0, amount) * 100
	deg := math.Pi / 180
	return func(x float64) float64 {
		if math.Abs(x) < 0.001 {
			return 0
		}
		return (3 + k) * x * 20 * deg / (math.Pi + k*math.Abs(x))
	}
}

// OverdriveFunc is a soft clipper whose knee hardens with drive in [0, 1].
func OverdriveFunc(drive float64) Func {
	k := 1 + math.Max(0, drive)*20
	norm := math.Tanh(k)
	return func(x float64) float64 { return math.Tanh(x*k) / norm }
}

// ChebyshevFunc evaluates the Chebyshev polynomial of the first kind T_order.
func ChebyshevFunc(order int) Func {
	if order < 1 {
		order = 1
	}
	return func(x float64) float64 {
		t0, t1 := 1.0, x
		for range order - 1 {
			t0, t1 = t1, 2*x*t1-t0
		}
		return t1
	}
}
