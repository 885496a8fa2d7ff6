package meter

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// ErrInvalidSize is returned for non power-of-two analysis sizes.
var ErrInvalidSize = errors.New("meter: size must be a power of two >= 16")

// Spectrum computes log-spaced band energies of the most recent window of
// samples using a Hann-windowed FFT.
type Spectrum struct {
	size       int
	sampleRate float64
	plan       *algofft.Plan[complex128]

	history []float64
	pos     int
	window  []float64
	buf     []complex128
	spec    []complex128
	re, im  []float64
	mag     []float64
}

// NewSpectrum creates an analyser over size samples.
func NewSpectrum(size int, sampleRate float64) (*Spectrum, error) {
	if size < 16 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("meter: failed to create FFT plan: %w", err)
	}
	s := &Spectrum{
		size:       size,
		sampleRate: sampleRate,
		plan:       plan,
		history:    make([]float64, size),
		window:     make([]float64, size),
		buf:        make([]complex128, size),
		spec:       make([]complex128, size),
		re:         make([]float64, size/2),
		im:         make([]float64, size/2),
		mag:        make([]float64, size/2),
	}
	for i := range s.window {
		s.window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size))
	}
	return s, nil
}

// Write appends mono samples to the analysis window.
func (s *Spectrum) Write(samples []float64) {
	for _, v := range samples {
		s.history[s.pos] = v
		s.pos++
		if s.pos == s.size {
			s.pos = 0
		}
	}
}

// Bands returns n band levels in dB between 20 Hz and nyquist, log spaced.
func (s *Spectrum) Bands(n int) ([]float64, error) {
	if n <= 0 {
		return nil, nil
	}
	for i := range s.size {
		s.buf[i] = complex(s.history[(s.pos+i)%s.size]*s.window[i], 0)
	}
	if err := s.plan.Forward(s.spec, s.buf); err != nil {
		return nil, fmt.Errorf("meter: FFT failed: %w", err)
	}
	half := s.size / 2
	for k := range half {
		s.re[k] = real(s.spec[k])
		s.im[k] = imag(s.spec[k])
	}
	vecmath.Magnitude(s.mag, s.re, s.im)

	bands := make([]float64, n)
	lo, hi := 20.0, s.sampleRate/2
	binHz := s.sampleRate / float64(s.size)
	norm := 2 / float64(s.size) * 2 // Hann coherent gain is 0.5.
	for b := range bands {
		f0 := lo * math.Pow(hi/lo, float64(b)/float64(n))
		f1 := lo * math.Pow(hi/lo, float64(b+1)/float64(n))
		k0 := max(1, int(f0/binHz))
		k1 := min(half-1, max(k0, int(f1/binHz)))
		var peak float64
		for k := k0; k <= k1; k++ {
			peak = math.Max(peak, s.mag[k]*norm)
		}
		if peak <= 0 {
			bands[b] = math.Inf(-1)
			continue
		}
		bands[b] = 20 * math.Log10(peak)
	}
	return bands, nil
}
