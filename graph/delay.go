package graph

import (
	"math"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/delay"
)

// MaxDelay is the longest delay time a FeedbackDelay accepts, in seconds.
const MaxDelay = 4.0

// FeedbackDelay is an echo with feedback and a wet/dry mix. In ping-pong mode
// the feedback path crosses between channels.
type FeedbackDelay struct {
	node

	DelayTime *Param
	Feedback  *Param
	Wet       *Param

	pingPong bool
	lines    [2]*delay.Line
}

// NewFeedbackDelay creates a delay with the given time in seconds and
// feedback. The wet mix starts at 0.5.
func NewFeedbackDelay(ctx *Context, seconds, feedback float64) *FeedbackDelay {
	return newDelay(ctx, "FeedbackDelay", seconds, feedback, false)
}

// NewPingPongDelay creates a delay whose repeats alternate between channels.
func NewPingPongDelay(ctx *Context, seconds, feedback float64) *FeedbackDelay {
	return newDelay(ctx, "PingPongDelay", seconds, feedback, true)
}

func newDelay(ctx *Context, kind string, seconds, feedback float64, pingPong bool) *FeedbackDelay {
	d := &FeedbackDelay{
		DelayTime: newParam(ctx, "delayTime", seconds, 0, MaxDelay),
		Feedback:  newParam(ctx, "feedback", feedback, 0, 0.99),
		Wet:       newParam(ctx, "wet", 0.5, 0, 1),
		pingPong:  pingPong,
	}
	for i := range d.lines {
		// MaxDelay is positive, so the line size is valid.
		d.lines[i], _ = delay.ForDuration(MaxDelay, ctx.sampleRate)
	}
	d.init(ctx, kind, d)
	return d
}

func (d *FeedbackDelay) process(in, out block, t0 float64) {
	samples := math.Max(d.DelayTime.at(t0)*d.ctx.sampleRate, 1)
	fb := d.Feedback.at(t0)
	wet := d.Wet.at(t0)
	for i := range in.l {
		yl := d.lines[0].ReadFractional(samples)
		yr := d.lines[1].ReadFractional(samples)
		if d.pingPong {
			// Right repeats trail the left by one delay period.
			d.lines[0].Write((in.l[i]+in.r[i])/2 + yr*fb)
			d.lines[1].Write(yl * fb)
		} else {
			d.lines[0].Write(in.l[i] + yl*fb)
			d.lines[1].Write(in.r[i] + yr*fb)
		}
		out.l[i] = in.l[i]*(1-wet) + yl*wet
		out.r[i] = in.r[i]*(1-wet) + yr*wet
	}
}

// Chorus is a modulated short delay. With the dry signal removed it becomes
// a vibrato.
type Chorus struct {
	node

	// Frequency is the LFO rate in Hz.
	Frequency *Param
	// DelayTime is the centre delay in milliseconds.
	DelayTime *Param
	// Depth scales the modulation between 0 and the centre delay.
	Depth    *Param
	Feedback *Param
	Wet      *Param

	lfo   lfo
	lines [2]*delay.Line
}

// NewChorus creates a chorus.
func NewChorus(ctx *Context, freq, delayMs, depth float64) *Chorus {
	return newChorus(ctx, "Chorus", freq, delayMs, depth, 0.5)
}

// NewVibrato creates a fully wet pitch-wobble effect.
func NewVibrato(ctx *Context, freq, depth float64) *Chorus {
	return newChorus(ctx, "Vibrato", freq, 5, depth, 1)
}

func newChorus(ctx *Context, kind string, freq, delayMs, depth, wet float64) *Chorus {
	c := &Chorus{
		Frequency: newParam(ctx, "frequency", freq, 0, 20),
		DelayTime: newParam(ctx, "delayTime", delayMs, 0.5, 50),
		Depth:     newParam(ctx, "depth", depth, 0, 1),
		Feedback:  newParam(ctx, "feedback", 0, 0, 0.95),
		Wet:       newParam(ctx, "wet", wet, 0, 1),
		lfo:       lfo{spread: 0.5},
	}
	for i := range c.lines {
		c.lines[i], _ = delay.ForDuration(0.11, ctx.sampleRate)
	}
	c.init(ctx, kind, c)
	return c
}

func (c *Chorus) process(in, out block, t0 float64) {
	sr := c.ctx.sampleRate
	freq := c.Frequency.at(t0)
	centre := c.DelayTime.at(t0) * 0.001 * sr
	depth := c.Depth.at(t0) * centre * 0.95
	fb := c.Feedback.at(t0)
	wet := c.Wet.at(t0)
	for i := range in.l {
		ml, mr := c.lfo.next(freq, sr)
		yl := c.lines[0].ReadFractional(centre + ml*depth)
		yr := c.lines[1].ReadFractional(centre + mr*depth)
		c.lines[0].Write(in.l[i] + yl*fb)
		c.lines[1].Write(in.r[i] + yr*fb)
		out.l[i] = in.l[i]*(1-wet) + yl*wet
		out.r[i] = in.r[i]*(1-wet) + yr*wet
	}
}

// lfo is a stereo sine oscillator; spread offsets the right channel phase
// in cycles.
type lfo struct {
	phase  float64
	spread float64
}

// next returns values in [-1, 1] and advances one sample.
func (o *lfo) next(freq, sampleRate float64) (l, r float64) {
	l = math.Sin(2 * math.Pi * o.phase)
	r = math.Sin(2 * math.Pi * (o.phase + o.spread))
	o.phase += freq / sampleRate
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
	return l, r
}
