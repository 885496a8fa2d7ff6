package graph

import (
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/dynamics"
)

// CompressorSettings configures a Compressor node. Times are in seconds.
type CompressorSettings struct {
	Threshold float64
	Ratio     float64
	Knee      float64
	Attack    float64
	Release   float64
}

// DefaultCompressorSettings returns -24 dB, 4:1, 6 dB knee, 10 ms, 100 ms.
func DefaultCompressorSettings() CompressorSettings {
	return CompressorSettings{
		Threshold: dynamics.DefaultThresholdDB,
		Ratio:     dynamics.DefaultRatio,
		Knee:      dynamics.DefaultKneeDB,
		Attack:    dynamics.DefaultAttack,
		Release:   dynamics.DefaultRelease,
	}
}

// Clamped returns s with every field forced into its valid range.
func (s CompressorSettings) Clamped() CompressorSettings {
	return CompressorSettings{
		Threshold: core.Clamp(s.Threshold, dynamics.MinThresholdDB, dynamics.MaxThresholdDB),
		Ratio:     core.Clamp(s.Ratio, dynamics.MinRatio, dynamics.MaxRatio),
		Knee:      core.Clamp(s.Knee, dynamics.MinKneeDB, dynamics.MaxKneeDB),
		Attack:    core.Clamp(s.Attack, dynamics.MinAttack, dynamics.MaxAttack),
		Release:   core.Clamp(s.Release, dynamics.MinRelease, dynamics.MaxRelease),
	}
}

// Compressor is a stereo-linked dynamics compressor.
type Compressor struct {
	node

	comp     *dynamics.Compressor
	settings CompressorSettings
}

// NewCompressor creates a compressor with the given settings, clamped.
func NewCompressor(ctx *Context, s CompressorSettings) *Compressor {
	comp, err := dynamics.NewCompressor(ctx.sampleRate)
	if err != nil {
		// The context sample rate is always positive.
		panic(err)
	}
	c := &Compressor{comp: comp}
	c.apply(s)
	c.init(ctx, "Compressor", c)
	return c
}

// Set replaces the settings. Out-of-range fields are clamped.
func (c *Compressor) Set(s CompressorSettings) {
	c.ctx.mu.Lock()
	defer c.ctx.mu.Unlock()
	c.apply(s)
}

// Settings returns the active settings.
func (c *Compressor) Settings() CompressorSettings {
	c.ctx.mu.Lock()
	defer c.ctx.mu.Unlock()
	return c.settings
}

// Reduction returns the current gain reduction in dB.
func (c *Compressor) Reduction() float64 {
	c.ctx.mu.Lock()
	defer c.ctx.mu.Unlock()
	return c.comp.Reduction()
}

func (c *Compressor) apply(s CompressorSettings) {
	s = s.Clamped()
	// Values are clamped, so the setters cannot fail.
	_ = c.comp.SetThreshold(s.Threshold)
	_ = c.comp.SetRatio(s.Ratio)
	_ = c.comp.SetKnee(s.Knee)
	_ = c.comp.SetAttack(s.Attack)
	_ = c.comp.SetRelease(s.Release)
	c.settings = s
}

func (c *Compressor) process(in, out block, _ float64) {
	copy(out.l, in.l)
	copy(out.r, in.r)
	c.comp.ProcessStereo(out.l, out.r)
}
