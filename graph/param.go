package graph

import (
	"math"
	"sort"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
)

type eventKind int

const (
	eventSet eventKind = iota
	eventLinear
	eventExponential
	eventTarget
)

type event struct {
	kind  eventKind
	time  float64
	value float64
	tc    float64
}

// Param is an automatable control value. Scheduled values are clamped to
// the param's range.
type Param struct {
	ctx      *Context
	name     string
	def      float64
	min, max float64

	anchorT, anchorV float64
	events           []event

	buf []float64
}

func newParam(ctx *Context, name string, def, min, max float64) *Param {
	def = core.Clamp(def, min, max)
	return &Param{
		ctx:     ctx,
		name:    name,
		def:     def,
		min:     min,
		max:     max,
		anchorV: def,
		buf:     make([]float64, ctx.blockSize),
	}
}

// Name returns the param name.
func (p *Param) Name() string { return p.name }

// Default returns the initial value.
func (p *Param) Default() float64 { return p.def }

// Range returns the inclusive value range.
func (p *Param) Range() (min, max float64) { return p.min, p.max }

// Value returns the value at the current context time.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(p.ctx.now())
}

// ValueAt returns the automated value at context time t.
func (p *Param) ValueAt(t float64) float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(t)
}

// SetValue cancels pending automation and sets v immediately.
func (p *Param) SetValue(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.setNow(v)
}

func (p *Param) setNow(v float64) {
	now := p.ctx.now()
	p.cancel(now)
	p.insert(event{kind: eventSet, time: now, value: p.clamp(v)})
}

// SetValueAtTime schedules a step to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(event{kind: eventSet, time: t, value: p.clamp(v)})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(event{kind: eventLinear, time: t, value: p.clamp(v)})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event to
// v at t. If the start and end values differ in sign or either is zero the
// previous value is held until t.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(event{kind: eventExponential, time: t, value: p.clamp(v)})
}

// SetTargetAtTime approaches target exponentially from time t with the given
// time constant in seconds.
func (p *Param) SetTargetAtTime(target, t, timeConstant float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	if timeConstant <= 0 {
		p.insert(event{kind: eventSet, time: t, value: p.clamp(target)})
		return
	}
	p.insert(event{kind: eventTarget, time: t, value: p.clamp(target), tc: timeConstant})
}

// CancelScheduledValues removes every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.cancel(t)
}

// RampTo ramps linearly from the current value to v over seconds.
func (p *Param) RampTo(v, seconds float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.rampTo(v, seconds, eventLinear)
}

// ExponentialRampTo ramps exponentially from the current value to v over
// seconds. Frequencies sound even under exponential ramps.
func (p *Param) ExponentialRampTo(v, seconds float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.rampTo(v, seconds, eventExponential)
}

func (p *Param) rampTo(v, seconds float64, kind eventKind) {
	now := p.ctx.now()
	if seconds <= 0 {
		p.setNow(v)
		return
	}
	cur := p.valueAt(now)
	p.cancel(now)
	p.insert(event{kind: eventSet, time: now, value: cur})
	p.insert(event{kind: kind, time: now + seconds, value: p.clamp(v)})
}

func (p *Param) clamp(v float64) float64 {
	return core.Clamp(v, p.min, p.max)
}

func (p *Param) insert(e event) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

func (p *Param) cancel(t float64) {
	if t <= p.anchorT {
		// Folded history cannot be cancelled; keep the anchor.
		t = math.Nextafter(p.anchorT, math.Inf(1))
	}
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
	p.events = p.events[:i]
}

func (p *Param) valueAt(t float64) float64 {
	v, vt := p.anchorV, p.anchorT
	for i, e := range p.events {
		if e.time > t {
			switch e.kind {
			case eventLinear:
				if e.time <= vt {
					return e.value
				}
				return v + (e.value-v)*(t-vt)/(e.time-vt)
			case eventExponential:
				if e.time <= vt || v == 0 || e.value == 0 || (v < 0) != (e.value < 0) {
					return v
				}
				return v * math.Pow(e.value/v, (t-vt)/(e.time-vt))
			}
			return v
		}
		switch e.kind {
		case eventTarget:
			end := t
			if i+1 < len(p.events) && p.events[i+1].time <= t {
				end = p.events[i+1].time
			}
			v = e.value + (v-e.value)*math.Exp(-(end-e.time)/e.tc)
			vt = end
		default:
			v, vt = e.value, e.time
		}
	}
	return v
}

// fold moves events entirely in the past into the anchor.
func (p *Param) fold(t float64) {
	for len(p.events) > 0 {
		e := p.events[0]
		if e.time > t {
			return
		}
		hasNext := len(p.events) > 1
		if hasNext && p.events[1].time > t {
			if e.kind == eventTarget || p.events[1].kind == eventLinear || p.events[1].kind == eventExponential {
				return
			}
		}
		if !hasNext && e.kind == eventTarget {
			return
		}
		switch e.kind {
		case eventTarget:
			next := p.events[1].time
			p.anchorV = e.value + (p.anchorV-e.value)*math.Exp(-(next-e.time)/e.tc)
			p.anchorT = next
		default:
			p.anchorV, p.anchorT = e.value, e.time
		}
		p.events = p.events[1:]
	}
}

// block returns per-sample values for n frames starting at t0.
func (p *Param) block(t0 float64, n int) []float64 {
	p.fold(t0)
	buf := p.buf[:n]
	if len(p.events) == 0 || p.events[0].time > t0+float64(n)/p.ctx.sampleRate && p.events[0].kind == eventSet {
		core.Fill(buf, p.valueAt(t0))
		return buf
	}
	dt := 1 / p.ctx.sampleRate
	for i := range buf {
		buf[i] = p.valueAt(t0 + float64(i)*dt)
	}
	return buf
}

// at returns the k-rate value for the quantum starting at t0.
func (p *Param) at(t0 float64) float64 {
	p.fold(t0)
	return p.valueAt(t0)
}
