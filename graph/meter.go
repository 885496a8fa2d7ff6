package graph

import (
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/meter"
)

// Meter passes its input through and records the signal level.
type Meter struct {
	node

	level    *meter.Level
	spectrum *meter.Spectrum
	mono     []float64
}

// NewMeter creates a meter. smoothing in [0, 1) weights previous readings.
func NewMeter(ctx *Context, smoothing float64) *Meter {
	m := &Meter{
		level: meter.NewLevel(smoothing),
		mono:  make([]float64, ctx.blockSize),
	}
	// 2048 is a power of two, so the analyser cannot fail.
	m.spectrum, _ = meter.NewSpectrum(2048, ctx.sampleRate)
	m.init(ctx, "Meter", m)
	return m
}

// Level returns the smoothed RMS level in dBFS.
func (m *Meter) Level() float64 {
	m.ctx.mu.Lock()
	defer m.ctx.mu.Unlock()
	return m.level.DB()
}

// Peak returns the last block peak in dBFS.
func (m *Meter) Peak() float64 {
	m.ctx.mu.Lock()
	defer m.ctx.mu.Unlock()
	return m.level.PeakDB()
}

// Bands returns n log-spaced band levels in dB of the recent signal.
func (m *Meter) Bands(n int) ([]float64, error) {
	m.ctx.mu.Lock()
	defer m.ctx.mu.Unlock()
	return m.spectrum.Bands(n)
}

func (m *Meter) process(in, out block, _ float64) {
	copy(out.l, in.l)
	copy(out.r, in.r)
	m.level.Update(in.l, in.r)
	mono := m.mono[:len(in.l)]
	for i := range mono {
		mono[i] = (in.l[i] + in.r[i]) / 2
	}
	m.spectrum.Write(mono)
}
