package graph

import (
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/biquad"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
)

// Filter is a biquad filter whose frequency, Q and gain are evaluated once
// per render quantum.
type Filter struct {
	node

	Frequency *Param
	Q         *Param
	// Gain is used by the shelf and peaking responses, in dB.
	Gain *Param

	kind   biquad.Kind
	stages int
	l, r   biquad.Cascade
	last   [3]float64
	dirty  bool
}

// NewFilter creates a filter. rolloff is -12, -24 or -48 dB/octave; other
// values fall back to -12.
func NewFilter(ctx *Context, kind biquad.Kind, freq float64, rolloff int) *Filter {
	stages := 1
	switch rolloff {
	case -24:
		stages = 2
	case -48:
		stages = 4
	}
	f := &Filter{
		Frequency: newParam(ctx, "frequency", freq, 10, 22000),
		Q:         newParam(ctx, "Q", biquad.DefaultQ, 0.0001, 100),
		Gain:      newParam(ctx, "gain", 0, -40, 40),
		kind:      kind,
		stages:    stages,
		l:         biquad.NewCascade(stages, biquad.Identity()),
		r:         biquad.NewCascade(stages, biquad.Identity()),
		dirty:     true,
	}
	f.init(ctx, "Filter", f)
	return f
}

// Type returns the filter response.
func (f *Filter) Type() biquad.Kind {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	return f.kind
}

// SetType switches the filter response.
func (f *Filter) SetType(kind biquad.Kind) {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	if kind != f.kind {
		f.kind = kind
		f.dirty = true
	}
}

// Coefficients returns the coefficients designed for the current params.
func (f *Filter) Coefficients() biquad.Coefficients {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	t := f.ctx.now()
	return biquad.Design(f.kind, f.Frequency.valueAt(t), f.Q.valueAt(t), f.Gain.valueAt(t), f.ctx.sampleRate)
}

func (f *Filter) process(in, out block, t0 float64) {
	cur := [3]float64{f.Frequency.at(t0), f.Q.at(t0), f.Gain.at(t0)}
	if f.dirty || cur != f.last {
		c := biquad.Design(f.kind, cur[0], cur[1], cur[2], f.ctx.sampleRate)
		f.l.SetCoefficients(c)
		f.r.SetCoefficients(c)
		f.last = cur
		f.dirty = false
	}
	copy(out.l, in.l)
	copy(out.r, in.r)
	f.l.ProcessBlock(out.l)
	f.r.ProcessBlock(out.r)
}

// EQ3 splits the signal into three Linkwitz-Riley bands and applies a gain in
// dB to each. A band at -Inf dB is removed entirely.
type EQ3 struct {
	node

	Low  *Param
	Mid  *Param
	High *Param

	lowFreq, highFreq float64
	bands             [2]eqBands
	scratch           [3][]float64
}

type eqBands struct {
	lowLP, midHP, midLP, highHP biquad.Cascade
}

// NewEQ3 creates a three band EQ with the given crossover frequencies.
func NewEQ3(ctx *Context, lowFreq, highFreq float64) *EQ3 {
	if lowFreq > highFreq {
		lowFreq, highFreq = highFreq, lowFreq
	}
	e := &EQ3{
		Low:      newParam(ctx, "low", 0, -inf, 24),
		Mid:      newParam(ctx, "mid", 0, -inf, 24),
		High:     newParam(ctx, "high", 0, -inf, 24),
		lowFreq:  lowFreq,
		highFreq: highFreq,
	}
	sr := ctx.sampleRate
	lp := biquad.Design(biquad.Lowpass, lowFreq, biquad.DefaultQ, 0, sr)
	hpLow := biquad.Design(biquad.Highpass, lowFreq, biquad.DefaultQ, 0, sr)
	lpHigh := biquad.Design(biquad.Lowpass, highFreq, biquad.DefaultQ, 0, sr)
	hp := biquad.Design(biquad.Highpass, highFreq, biquad.DefaultQ, 0, sr)
	for i := range e.bands {
		e.bands[i] = eqBands{
			lowLP:  biquad.NewCascade(2, lp),
			midHP:  biquad.NewCascade(2, hpLow),
			midLP:  biquad.NewCascade(2, lpHigh),
			highHP: biquad.NewCascade(2, hp),
		}
	}
	for i := range e.scratch {
		e.scratch[i] = make([]float64, ctx.blockSize)
	}
	e.init(ctx, "EQ3", e)
	return e
}

// Crossovers returns the low and high crossover frequencies in Hz.
func (e *EQ3) Crossovers() (low, high float64) { return e.lowFreq, e.highFreq }

func (e *EQ3) process(in, out block, t0 float64) {
	gl := core.DBToGain(e.Low.at(t0))
	gm := core.DBToGain(e.Mid.at(t0))
	gh := core.DBToGain(e.High.at(t0))
	n := len(in.l)
	lo, mid, hi := e.scratch[0][:n], e.scratch[1][:n], e.scratch[2][:n]
	for ch, pair := range [2][2][]float64{{in.l, out.l}, {in.r, out.r}} {
		src, dst := pair[0], pair[1]
		b := &e.bands[ch]
		copy(lo, src)
		copy(mid, src)
		copy(hi, src)
		b.lowLP.ProcessBlock(lo)
		b.midHP.ProcessBlock(mid)
		b.midLP.ProcessBlock(mid)
		b.highHP.ProcessBlock(hi)
		for i := range dst {
			dst[i] = lo[i]*gl + mid[i]*gm + hi[i]*gh
		}
	}
}
