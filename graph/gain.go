package graph

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
)

// Gain multiplies its input by a linear gain.
type Gain struct {
	node

	Gain *Param
}

// NewGain creates a gain node with the given initial linear gain.
func NewGain(ctx *Context, gain float64) *Gain {
	g := &Gain{Gain: newParam(ctx, "gain", gain, -100, 100)}
	g.init(ctx, "Gain", g)
	return g
}

func (g *Gain) process(in, out block, t0 float64) {
	applyGain(g.Gain, in, out, t0)
}

func applyGain(p *Param, in, out block, t0 float64) {
	n := len(in.l)
	p.fold(t0)
	if len(p.events) == 0 {
		v := p.anchorV
		vecmath.ScaleBlock(out.l, in.l, v)
		vecmath.ScaleBlock(out.r, in.r, v)
		return
	}
	g := p.block(t0, n)
	vecmath.MulBlock(out.l, in.l, g)
	vecmath.MulBlock(out.r, in.r, g)
}

// Panner is an equal-power stereo panner.
type Panner struct {
	node

	// Pan ranges from -1 (left) to 1 (right).
	Pan *Param
}

// NewPanner creates a centred panner.
func NewPanner(ctx *Context, pan float64) *Panner {
	p := &Panner{Pan: newParam(ctx, "pan", pan, -1, 1)}
	p.init(ctx, "Panner", p)
	return p
}

func (p *Panner) process(in, out block, t0 float64) {
	pan := p.Pan.block(t0, len(in.l))
	for i := range in.l {
		panSample(in.l[i], in.r[i], pan[i], &out.l[i], &out.r[i])
	}
}

// panSample applies stereo equal-power panning to one frame.
func panSample(l, r, pan float64, ol, or *float64) {
	if pan <= 0 {
		x := (pan + 1) * math.Pi / 2
		*ol = l + r*math.Cos(x)
		*or = r * math.Sin(x)
		return
	}
	x := pan * math.Pi / 2
	*ol = l * math.Cos(x)
	*or = r + l*math.Sin(x)
}

// Channel combines volume in dB, pan and mute.
type Channel struct {
	node

	Volume *Param
	Pan    *Param

	muted bool
}

// NewChannel creates a channel strip output at the given volume in dB.
func NewChannel(ctx *Context, volumeDB, pan float64) *Channel {
	c := &Channel{
		Volume: newParam(ctx, "volume", volumeDB, math.Inf(-1), 24),
		Pan:    newParam(ctx, "pan", pan, -1, 1),
	}
	c.init(ctx, "Channel", c)
	return c
}

// SetMute silences the channel without touching the volume param.
func (c *Channel) SetMute(muted bool) {
	c.ctx.mu.Lock()
	defer c.ctx.mu.Unlock()
	c.muted = muted
}

// Muted reports the mute state.
func (c *Channel) Muted() bool {
	c.ctx.mu.Lock()
	defer c.ctx.mu.Unlock()
	return c.muted
}

func (c *Channel) process(in, out block, t0 float64) {
	n := len(in.l)
	if c.muted {
		clearBlock(out)
		return
	}
	vol := c.Volume.block(t0, n)
	pan := c.Pan.block(t0, n)
	for i := range n {
		var l, r float64
		panSample(in.l[i], in.r[i], pan[i], &l, &r)
		g := core.DBToGain(vol[i])
		out.l[i] = l * g
		out.r[i] = r * g
	}
}

// StereoWidener scales the side signal against the mid signal.
// Width 0 is mono, 0.5 leaves the image unchanged and 1 keeps only the side.
type StereoWidener struct {
	node

	Width *Param
}

// NewStereoWidener creates a widener.
func NewStereoWidener(ctx *Context, width float64) *StereoWidener {
	w := &StereoWidener{Width: newParam(ctx, "width", width, 0, 1)}
	w.init(ctx, "StereoWidener", w)
	return w
}

func (w *StereoWidener) process(in, out block, t0 float64) {
	width := w.Width.at(t0)
	midMul := (1 - width) * 2
	sideMul := width * 2
	for i := range in.l {
		m := (in.l[i] + in.r[i]) / 2 * midMul
		s := (in.l[i] - in.r[i]) / 2 * sideMul
		out.l[i] = m + s
		out.r[i] = m - s
	}
}
