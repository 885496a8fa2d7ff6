package graph

import "math"

var (
	combTuning    = [...]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	allpassTuning = [...]int{556, 441, 341, 225}
)

const (
	freeverbSpread    = 23
	freeverbInputGain = 0.015
)

// Freeverb is a Schroeder/Moorer comb and allpass reverb. Tunings are scaled
// from 44.1 kHz to the context rate.
type Freeverb struct {
	node

	// RoomSize sets the comb feedback.
	RoomSize *Param
	// Dampening is the lowpass amount inside the comb feedback.
	Dampening *Param
	Wet       *Param

	combs   [2][len(combTuning)]comb
	allpass [2][len(allpassTuning)]allpass
}

// NewFreeverb creates a reverb with the given room size in [0, 1).
func NewFreeverb(ctx *Context, roomSize, dampening float64) *Freeverb {
	f := &Freeverb{
		RoomSize:  newParam(ctx, "roomSize", roomSize, 0, 0.98),
		Dampening: newParam(ctx, "dampening", dampening, 0, 1),
		Wet:       newParam(ctx, "wet", 0.5, 0, 1),
	}
	scale := ctx.sampleRate / 44100
	for ch := range 2 {
		spread := ch * freeverbSpread
		for i, n := range combTuning {
			f.combs[ch][i].buf = make([]float64, max(1, int(float64(n+spread)*scale)))
		}
		for i, n := range allpassTuning {
			f.allpass[ch][i].buf = make([]float64, max(1, int(float64(n+spread)*scale)))
		}
	}
	f.init(ctx, "Freeverb", f)
	return f
}

func (f *Freeverb) process(in, out block, t0 float64) {
	room := f.RoomSize.at(t0)
	damp := f.Dampening.at(t0)
	wet := f.Wet.at(t0)
	for ch, pair := range [2][2][]float64{{in.l, out.l}, {in.r, out.r}} {
		src, dst := pair[0], pair[1]
		for i, x := range src {
			v := x * freeverbInputGain
			var acc float64
			for k := range f.combs[ch] {
				acc += f.combs[ch][k].process(v, room, damp)
			}
			for k := range f.allpass[ch] {
				acc = f.allpass[ch][k].process(acc)
			}
			dst[i] = x*(1-wet) + acc*wet
		}
	}
}

type comb struct {
	buf   []float64
	idx   int
	store float64
}

func (c *comb) process(x, feedback, damp float64) float64 {
	y := c.buf[c.idx]
	c.store = y*(1-damp) + c.store*damp
	if math.Abs(c.store) < 1e-23 {
		c.store = 0
	}
	c.buf[c.idx] = x + c.store*feedback
	c.idx++
	if c.idx >= len(c.buf) {
		c.idx = 0
	}
	return y
}

type allpass struct {
	buf []float64
	idx int
}

func (a *allpass) process(x float64) float64 {
	b := a.buf[a.idx]
	y := b - x
	a.buf[a.idx] = x + b*0.5
	a.idx++
	if a.idx >= len(a.buf) {
		a.idx = 0
	}
	return y
}
