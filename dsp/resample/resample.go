// Package resample converts decoded tracks to the engine sample rate with a
// Kaiser-windowed polyphase FIR.
package resample

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRate is returned for non-positive or non-finite rates.
var ErrInvalidRate = errors.New("resample: invalid sample rate")

// maxDenominator bounds the rational approximation of the rate ratio.
const maxDenominator = 4096

// Quality selects the anti-aliasing filter.
type Quality int

const (
	QualityFast Quality = iota
	QualityBalanced
	QualityBest
)

type profile struct {
	taps   int // per phase
	cutoff float64
	beta   float64
}

func (q Quality) profile() profile {
	switch q {
	case QualityFast:
		return profile{taps: 16, cutoff: 0.88, beta: 5}
	case QualityBest:
		return profile{taps: 64, cutoff: 0.96, beta: 9}
	default:
		return profile{taps: 32, cutoff: 0.92, beta: 7.5}
	}
}

// Option configures a Converter.
type Option func(*Quality)

// WithQuality sets the filter quality. The default is QualityBalanced.
func WithQuality(q Quality) Option { return func(p *Quality) { *p = q } }

// Converter resamples whole signals by the ratio up/down.
type Converter struct {
	up, down int
	phases   [][]float64
}

// NewForRates creates a converter from inRate to outRate.
func NewForRates(inRate, outRate float64, opts ...Option) (*Converter, error) {
	for _, r := range []float64{inRate, outRate} {
		if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRate, r)
		}
	}
	q := QualityBalanced
	for _, opt := range opts {
		if opt != nil {
			opt(&q)
		}
	}
	up, down := ratio(outRate/inRate, maxDenominator)
	return &Converter{up: up, down: down, phases: design(up, down, q.profile())}, nil
}

// Ratio returns the reduced conversion ratio.
func (c *Converter) Ratio() (up, down int) { return c.up, c.down }

// Process returns in resampled. Output sample m reads input index
// floor(m*down/up) through phase (m*down) mod up.
func (c *Converter) Process(in []float64) []float64 {
	if len(in) == 0 {
		return nil
	}
	if c.up == c.down {
		return append([]float64(nil), in...)
	}
	n := (len(in)*c.up + c.down - 1) / c.down
	out := make([]float64, n)
	idx, phase := 0, 0
	for m := range out {
		var y float64
		for k, h := range c.phases[phase] {
			if i := idx - k; i >= 0 {
				y += h * in[i]
			} else {
				break
			}
		}
		out[m] = y
		phase += c.down
		idx += phase / c.up
		phase %= c.up
	}
	return out
}

// design builds the windowed-sinc prototype normalised to a gain of up and
// splits it into up polyphase branches.
func design(up, down int, p profile) [][]float64 {
	n := p.taps * up
	fc := 0.5 / float64(max(up, down)) * p.cutoff
	center := float64(n-1) / 2

	taps := make([]float64, n)
	var sum float64
	for i := range taps {
		taps[i] = 2 * fc * sinc(2*fc*(float64(i)-center)) * kaiser(i, n, p.beta)
		sum += taps[i]
	}
	phases := make([][]float64, up)
	for ph := range phases {
		for i := ph; i < n; i += up {
			phases[ph] = append(phases[ph], taps[i]*float64(up)/sum)
		}
	}
	return phases
}

// ratio approximates v by a continued fraction with denominator <= maxDen.
func ratio(v float64, maxDen int) (num, den int) {
	p0, q0 := 1.0, 0.0
	p1, q1 := math.Floor(v), 1.0
	x := v
	for {
		frac := x - math.Floor(x)
		if frac < 1e-12 {
			break
		}
		x = 1 / frac
		a := math.Floor(x)
		if a*q1+q0 > float64(maxDen) {
			break
		}
		p0, q0, p1, q1 = p1, q1, a*p1+p0, a*q1+q0
	}
	num, den = max(1, int(math.Round(p1))), max(1, int(math.Round(q1)))
	g := gcd(num, den)
	return num / g, den / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return max(a, 1)
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func kaiser(i, n int, beta float64) float64 {
	if n <= 1 {
		return 1
	}
	t := 2*float64(i)/float64(n-1) - 1
	return besselI0(beta*math.Sqrt(math.Max(0, 1-t*t))) / besselI0(beta)
}

// besselI0 is the zeroth-order modified Bessel function by power series.
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	q := x * x / 4
	for k := 1; k < 64 && term > 1e-16*sum; k++ {
		term *= q / float64(k*k)
		sum += term
	}
	return sum
}
