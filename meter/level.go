// Package meter measures signal levels and coarse band spectra for the deck,
// mixer and master meters.
package meter

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// DefaultSmoothing matches the ballistics of the channel meters.
const DefaultSmoothing = 0.8

// Level tracks a smoothed RMS level and a block peak of a stereo signal.
// Not safe for concurrent use.
type Level struct {
	smoothing float64
	rms       float64
	peak      float64
	power     []float64
}

// NewLevel creates a level meter. smoothing in [0, 1) weights the previous
// reading.
func NewLevel(smoothing float64) *Level {
	if smoothing < 0 || smoothing >= 1 || math.IsNaN(smoothing) {
		smoothing = DefaultSmoothing
	}
	return &Level{smoothing: smoothing}
}

// Update folds one stereo block into the meter.
func (m *Level) Update(l, r []float64) {
	n := min(len(l), len(r))
	if n == 0 {
		return
	}
	if cap(m.power) < n {
		m.power = make([]float64, n)
	}
	p := m.power[:n]
	// l^2 + r^2 per frame.
	vecmath.Power(p, l[:n], r[:n])

	var sum, peak float64
	for i, v := range p {
		sum += v
		if a := math.Abs(l[i]); a > peak {
			peak = a
		}
		if a := math.Abs(r[i]); a > peak {
			peak = a
		}
	}
	rms := mathSqrt(sum / float64(2*n))
	m.rms = m.smoothing*m.rms + (1-m.smoothing)*rms
	m.peak = peak
}

// RMS returns the smoothed RMS level as linear amplitude.
func (m *Level) RMS() float64 { return m.rms }

// Peak returns the last block peak as linear amplitude.
func (m *Level) Peak() float64 { return m.peak }

// DB returns the smoothed RMS level in dBFS, -Inf for silence.
func (m *Level) DB() float64 {
	if m.rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(m.rms)
}

// PeakDB returns the block peak in dBFS.
func (m *Level) PeakDB() float64 {
	if m.peak <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(m.peak)
}

// Reset clears the readings.
func (m *Level) Reset() {
	m.rms, m.peak = 0, 0
}
