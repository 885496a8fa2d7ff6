package graph

import (
	"math"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/conv"
)

const reverbPartition = 1024

// Reverb convolves its input with a generated decaying-noise impulse
// response. The wet path is delayed by one convolution partition.
type Reverb struct {
	node

	Wet *Param

	decay    float64
	preDelay float64
	conv     [2]*conv.Convolver
	wetBuf   block
}

// NewReverb creates a reverb with the given decay in seconds. Wet starts at 1.
func NewReverb(ctx *Context, decay float64) *Reverb {
	r := &Reverb{
		Wet:      newParam(ctx, "wet", 1, 0, 1),
		preDelay: 0.01,
		wetBuf:   newBlock(ctx.blockSize),
	}
	r.init(ctx, "Reverb", r)
	r.generate(decay)
	return r
}

// Decay returns the impulse response length in seconds.
func (r *Reverb) Decay() float64 {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()
	return r.decay
}

// SetDecay regenerates the impulse response synchronously.
func (r *Reverb) SetDecay(seconds float64) {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()
	r.generate(seconds)
}

// SetPreDelay sets the silent lead-in of the impulse response and
// regenerates it.
func (r *Reverb) SetPreDelay(seconds float64) {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()
	r.preDelay = math.Max(0, math.Min(seconds, 1))
	r.generate(r.decay)
}

func (r *Reverb) generate(decay float64) {
	r.decay = math.Max(0.001, math.Min(decay, 20))
	l, rr := conv.DecayingNoise(r.ctx.sampleRate, r.decay, r.preDelay, 0x5eed)
	scale := 0.25
	for i := range l {
		l[i] *= scale
		rr[i] *= scale
	}
	// Non-empty kernels and a power-of-two partition cannot fail.
	r.conv[0], _ = conv.New(l, reverbPartition)
	r.conv[1], _ = conv.New(rr, reverbPartition)
}

func (r *Reverb) process(in, out block, t0 float64) {
	wet := r.Wet.at(t0)
	w := r.wetBuf.slice(len(in.l))
	_ = r.conv[0].Process(w.l, in.l)
	_ = r.conv[1].Process(w.r, in.r)
	for i := range in.l {
		out.l[i] = in.l[i]*(1-wet) + w.l[i]*wet
		out.r[i] = in.r[i]*(1-wet) + w.r[i]*wet
	}
}

// Convolver applies a user impulse response, for cabinet and room effects.
type Convolver struct {
	node

	Wet *Param

	conv   [2]*conv.Convolver
	wetBuf block
}

// NewConvolver creates a convolver for the impulse response l, r. A nil r
// reuses l.
func NewConvolver(ctx *Context, l, r []float64, partition int) (*Convolver, error) {
	if r == nil {
		r = l
	}
	cl, err := conv.New(l, partition)
	if err != nil {
		return nil, err
	}
	cr, err := conv.New(r, partition)
	if err != nil {
		return nil, err
	}
	c := &Convolver{
		Wet:    newParam(ctx, "wet", 1, 0, 1),
		conv:   [2]*conv.Convolver{cl, cr},
		wetBuf: newBlock(ctx.blockSize),
	}
	c.init(ctx, "Convolver", c)
	return c, nil
}

func (c *Convolver) process(in, out block, t0 float64) {
	wet := c.Wet.at(t0)
	w := c.wetBuf.slice(len(in.l))
	_ = c.conv[0].Process(w.l, in.l)
	_ = c.conv[1].Process(w.r, in.r)
	for i := range in.l {
		out.l[i] = in.l[i]*(1-wet) + w.l[i]*wet
		out.r[i] = in.r[i]*(1-wet) + w.r[i]*wet
	}
}
