// Package biquad provides second-order IIR sections and RBJ cookbook designs
// used by the EQ, sweep filters and crossovers.
package biquad

import (
	"math"
	"math/cmplx"
)

// Coefficients holds the transfer function of one second-order section.
// a0 is normalized to 1 and not stored.
//
// Direct Form II Transposed:
//
//	y  = B0*x + d0
//	d0 = B1*x - A1*y + d1
//	d1 = B2*x - A2*y
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Identity returns pass-through coefficients.
func Identity() Coefficients { return Coefficients{B0: 1} }

// Response evaluates H(e^jw) at freqHz.
func (c Coefficients) Response(freqHz, sampleRate float64) complex128 {
	w := 2 * math.Pi * freqHz / sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(c.B0, 0) + complex(c.B1, 0)*z1 + complex(c.B2, 0)*z2
	den := 1 + complex(c.A1, 0)*z1 + complex(c.A2, 0)*z2
	return num / den
}

// MagnitudeDB returns the magnitude response at freqHz in dB.
func (c Coefficients) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return 20 * math.Log10(cmplx.Abs(c.Response(freqHz, sampleRate)))
}

// Section is a single biquad with coefficients and state.
type Section struct {
	Coefficients

	d0, d1 float64
}

// NewSection returns a Section with zero state.
func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// ProcessSample filters one input sample.
func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y
	return y
}

// ProcessBlock filters buf in place.
func (s *Section) ProcessBlock(buf []float64) {
	b0, b1, b2 := s.B0, s.B1, s.B2
	a1, a2 := s.A1, s.A2
	d0, d1 := s.d0, s.d1
	for i, x := range buf {
		y := b0*x + d0
		d0 = b1*x - a1*y + d1
		d1 = b2*x - a2*y
		buf[i] = y
	}
	s.d0, s.d1 = flush(d0), flush(d1)
}

// Reset clears the filter state.
func (s *Section) Reset() {
	s.d0, s.d1 = 0, 0
}

// Cascade is an ordered list of sections applied in series.
type Cascade []*Section

// NewCascade creates n sections with identical coefficients.
func NewCascade(n int, c Coefficients) Cascade {
	out := make(Cascade, n)
	for i := range out {
		out[i] = NewSection(c)
	}
	return out
}

// SetCoefficients updates every section.
func (c Cascade) SetCoefficients(k Coefficients) {
	for _, s := range c {
		s.Coefficients = k
	}
}

// ProcessBlock runs buf through every section in order.
func (c Cascade) ProcessBlock(buf []float64) {
	for _, s := range c {
		s.ProcessBlock(buf)
	}
}

// Reset clears every section.
func (c Cascade) Reset() {
	for _, s := range c {
		s.Reset()
	}
}

func flush(x float64) float64 {
	if x > -1e-30 && x < 1e-30 {
		return 0
	}
	return x
}
