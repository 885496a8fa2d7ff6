package graph

import (
	"math"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/biquad"
)

// Tremolo modulates amplitude with a sine LFO.
type Tremolo struct {
	node

	Frequency *Param
	Depth     *Param
	Wet       *Param

	lfo lfo
}

// NewTremolo creates a tremolo. spread offsets the right channel phase in
// cycles (0.5 is opposite phase).
func NewTremolo(ctx *Context, freq, depth, spread float64) *Tremolo {
	t := &Tremolo{
		Frequency: newParam(ctx, "frequency", freq, 0, 40),
		Depth:     newParam(ctx, "depth", depth, 0, 1),
		Wet:       newParam(ctx, "wet", 1, 0, 1),
		lfo:       lfo{spread: spread},
	}
	t.init(ctx, "Tremolo", t)
	return t
}

func (t *Tremolo) process(in, out block, t0 float64) {
	freq := t.Frequency.at(t0)
	depth := t.Depth.at(t0)
	wet := t.Wet.at(t0)
	for i := range in.l {
		ml, mr := t.lfo.next(freq, t.ctx.sampleRate)
		gl := 1 - depth*(ml+1)/2
		gr := 1 - depth*(mr+1)/2
		out.l[i] = in.l[i]*(1-wet) + in.l[i]*gl*wet
		out.r[i] = in.r[i]*(1-wet) + in.r[i]*gr*wet
	}
}

// AutoPanner sweeps the stereo position with a sine LFO.
type AutoPanner struct {
	node

	Frequency *Param
	Depth     *Param

	lfo lfo
}

// NewAutoPanner creates an auto panner.
func NewAutoPanner(ctx *Context, freq, depth float64) *AutoPanner {
	a := &AutoPanner{
		Frequency: newParam(ctx, "frequency", freq, 0, 40),
		Depth:     newParam(ctx, "depth", depth, 0, 1),
	}
	a.init(ctx, "AutoPanner", a)
	return a
}

func (a *AutoPanner) process(in, out block, t0 float64) {
	freq := a.Frequency.at(t0)
	depth := a.Depth.at(t0)
	for i := range in.l {
		m, _ := a.lfo.next(freq, a.ctx.sampleRate)
		panSample(in.l[i], in.r[i], m*depth, &out.l[i], &out.r[i])
	}
}

// AutoFilter sweeps a filter's cutoff between BaseFrequency and
// BaseFrequency*2^Octaves.
type AutoFilter struct {
	node

	Frequency     *Param
	BaseFrequency *Param
	Octaves       *Param
	Depth         *Param
	Wet           *Param

	kind biquad.Kind
	lfo  lfo
	l, r biquad.Cascade
}

// NewAutoFilter creates an auto filter with the given LFO rate and base
// frequency.
func NewAutoFilter(ctx *Context, kind biquad.Kind, freq, baseFreq, octaves float64) *AutoFilter {
	a := &AutoFilter{
		Frequency:     newParam(ctx, "frequency", freq, 0, 40),
		BaseFrequency: newParam(ctx, "baseFrequency", baseFreq, 10, 20000),
		Octaves:       newParam(ctx, "octaves", octaves, 0, 10),
		Depth:         newParam(ctx, "depth", 1, 0, 1),
		Wet:           newParam(ctx, "wet", 1, 0, 1),
		kind:          kind,
		l:             biquad.NewCascade(2, biquad.Identity()),
		r:             biquad.NewCascade(2, biquad.Identity()),
	}
	a.init(ctx, "AutoFilter", a)
	return a
}

// autoFilterStep is the number of frames between coefficient updates.
const autoFilterStep = 32

func (a *AutoFilter) process(in, out block, t0 float64) {
	sr := a.ctx.sampleRate
	freq := a.Frequency.at(t0)
	base := a.BaseFrequency.at(t0)
	oct := a.Octaves.at(t0)
	depth := a.Depth.at(t0)
	wet := a.Wet.at(t0)
	copy(out.l, in.l)
	copy(out.r, in.r)
	for start := 0; start < len(in.l); start += autoFilterStep {
		end := min(start+autoFilterStep, len(in.l))
		m, _ := a.lfo.next(freq*float64(end-start), sr)
		cutoff := base * math.Pow(2, oct*depth*(m+1)/2)
		c := biquad.Design(a.kind, cutoff, 1, 0, sr)
		a.l.SetCoefficients(c)
		a.r.SetCoefficients(c)
		a.l.ProcessBlock(out.l[start:end])
		a.r.ProcessBlock(out.r[start:end])
	}
	for i := range in.l {
		out.l[i] = in.l[i]*(1-wet) + out.l[i]*wet
		out.r[i] = in.r[i]*(1-wet) + out.r[i]*wet
	}
}

// Phaser runs the signal through a swept chain of allpass filters and mixes
// it with the dry signal.
type Phaser struct {
	node

	Frequency     *Param
	BaseFrequency *Param
	Octaves       *Param
	Q             *Param
	Wet           *Param

	lfo  lfo
	l, r biquad.Cascade
}

// NewPhaser creates a phaser with the given number of allpass stages.
func NewPhaser(ctx *Context, freq, baseFreq, octaves float64, stages int) *Phaser {
	stages = max(1, min(stages, 12))
	p := &Phaser{
		Frequency:     newParam(ctx, "frequency", freq, 0, 20),
		BaseFrequency: newParam(ctx, "baseFrequency", baseFreq, 10, 10000),
		Octaves:       newParam(ctx, "octaves", octaves, 0, 8),
		Q:             newParam(ctx, "Q", 10, 0.1, 40),
		Wet:           newParam(ctx, "wet", 0.5, 0, 1),
		lfo:           lfo{spread: 0.25},
		l:             biquad.NewCascade(stages, biquad.Identity()),
		r:             biquad.NewCascade(stages, biquad.Identity()),
	}
	p.init(ctx, "Phaser", p)
	return p
}

func (p *Phaser) process(in, out block, t0 float64) {
	sr := p.ctx.sampleRate
	freq := p.Frequency.at(t0)
	base := p.BaseFrequency.at(t0)
	oct := p.Octaves.at(t0)
	q := p.Q.at(t0) / 10
	wet := p.Wet.at(t0)
	copy(out.l, in.l)
	copy(out.r, in.r)
	for start := 0; start < len(in.l); start += autoFilterStep {
		end := min(start+autoFilterStep, len(in.l))
		ml, mr := p.lfo.next(freq*float64(end-start), sr)
		p.l.SetCoefficients(biquad.Design(biquad.Allpass, base*math.Pow(2, oct*(ml+1)/2), q, 0, sr))
		p.r.SetCoefficients(biquad.Design(biquad.Allpass, base*math.Pow(2, oct*(mr+1)/2), q, 0, sr))
		p.l.ProcessBlock(out.l[start:end])
		p.r.ProcessBlock(out.r[start:end])
	}
	for i := range in.l {
		out.l[i] = in.l[i]*(1-wet) + out.l[i]*wet
		out.r[i] = in.r[i]*(1-wet) + out.r[i]*wet
	}
}
