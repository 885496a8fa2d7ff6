// Package transition mixes two decks through a crossfader. Each deck passes
// through its own EQ, filter, delay and reverb before its channel gain, and
// an Engine automates those parameters over the length of a transition.
package transition

import (
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/biquad"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/sched"
)

// Engine defaults.
const (
	CenterFade     = 0.5
	FilterOpen     = 20000.0
	FilterRamp     = 0.1
	DelayTime      = 0.25
	DelayFeedback  = 0.3
	ReverbDecay    = 1.5
	DropThreshold  = 0.8
	EchoWet        = 0.8
	EchoFeedback   = 0.5
	SweepLowpassTo = 200.0
	SweepHighFrom  = 20.0
)

// eqSwap is the progress window in which the EQ swap holds.
var eqSwap = [2]float64{0.3, 0.7}

// Aligner returns the seconds to wait before a beat-aligned transition
// starts, or a negative value to start immediately.
type Aligner func() float64

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithAligner sets the source of beat-aligned start delays.
func WithAligner(a Aligner) Option { return func(e *Engine) { e.aligner = a } }

// WithOutput routes the master bus to n instead of the context destination.
func WithOutput(n graph.Node) Option {
	return func(e *Engine) {
		if n != nil {
			e.out = n
		}
	}
}

// WithCurve sets the initial crossfader curve.
func WithCurve(c Curve) Option { return func(e *Engine) { e.curve = c } }

type deckChain struct {
	eq      *graph.EQ3
	filter  *graph.Filter
	delay   *graph.FeedbackDelay
	reverb  *graph.Reverb
	channel *graph.Channel
}

func newDeckChain(ctx *graph.Context) *deckChain {
	c := &deckChain{
		eq:      graph.NewEQ3(ctx, 400, 2500),
		filter:  graph.NewFilter(ctx, biquad.Lowpass, FilterOpen, -12),
		delay:   graph.NewFeedbackDelay(ctx, DelayTime, DelayFeedback),
		reverb:  graph.NewReverb(ctx, ReverbDecay),
		channel: graph.NewChannel(ctx, 0, 0),
	}
	c.delay.Wet.SetValue(0)
	c.reverb.Wet.SetValue(0)
	return c
}

func (c *deckChain) nodes() []graph.Node {
	return []graph.Node{c.eq, c.filter, c.delay, c.reverb, c.channel}
}

func (c *deckChain) band(b Band) *graph.Param {
	switch b {
	case Mid:
		return c.eq.Mid
	case High:
		return c.eq.High
	}
	return c.eq.Low
}

// Engine owns the crossfader, the per-deck send chains and the master bus.
// Methods are safe for concurrent use. Setters with an invalid deck side are
// ignored; values are clamped.
type Engine struct {
	ctx     *graph.Context
	sched   *sched.Scheduler
	log     *slog.Logger
	aligner Aligner

	xf     *graph.CrossFade
	decks  [2]*deckChain
	master *graph.Channel
	out    graph.Node

	mu       sync.Mutex
	fade     float64
	curve    Curve
	current  *Run
	disposed bool
}

// New builds the engine graph on ctx and connects the master bus to the
// context destination, or the node given by WithOutput. Automation runs on s.
func New(ctx *graph.Context, s *sched.Scheduler, opts ...Option) (*Engine, error) {
	e := &Engine{
		ctx:    ctx,
		sched:  s,
		log:    slog.Default(),
		xf:     graph.NewCrossFade(ctx, CenterFade),
		master: graph.NewChannel(ctx, 0, 0),
		out:    ctx.Destination(),
		fade:   CenterFade,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.log = e.log.With("component", "transition")

	for i, side := range deck.Sides {
		c := newDeckChain(ctx)
		e.decks[i] = c
		var in graph.Node = e.xf.A()
		if side == deck.B {
			in = e.xf.B()
		}
		if err := graph.Chain(append(c.nodes(), in)...); err != nil {
			e.Dispose()
			return nil, err
		}
	}
	if err := graph.Chain(e.xf, e.master, e.out); err != nil {
		e.Dispose()
		return nil, err
	}
	e.applyFadeLocked()
	return e, nil
}

func (e *Engine) deck(side deck.Side) *deckChain {
	if !side.Valid() {
		return nil
	}
	return e.decks[side]
}

// Input returns the node a deck feeds, or nil for an invalid side.
func (e *Engine) Input(side deck.Side) graph.Node {
	c := e.deck(side)
	if c == nil {
		return nil
	}
	return c.eq
}

// Master returns the master bus channel.
func (e *Engine) Master() *graph.Channel { return e.master }

// Crossfade returns the raw crossfader position.
func (e *Engine) Crossfade() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fade
}

// Fade returns the curve-mapped value driving the crossfader.
func (e *Engine) Fade() float64 { return e.xf.Fade.Value() }

// Curve returns the active crossfader curve.
func (e *Engine) Curve() Curve {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.curve
}

// SetCrossfade stores v clamped to [0, 1] and applies the curve to it.
func (e *Engine) SetCrossfade(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setCrossfadeLocked(v)
}

func (e *Engine) setCrossfadeLocked(v float64) {
	if e.disposed || math.IsNaN(v) {
		return
	}
	e.fade = core.Clamp(v, 0, 1)
	e.applyFadeLocked()
}

func (e *Engine) applyFadeLocked() {
	e.xf.Fade.SetValue(e.curve.Apply(e.fade))
}

// SetCurve switches the curve and reapplies the stored position.
func (e *Engine) SetCurve(c Curve) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || c < 0 || c >= numCurves {
		return
	}
	e.curve = c
	e.applyFadeLocked()
}

// SetEQ sets all three band gains of a deck in dB.
func (e *Engine) SetEQ(side deck.Side, low, mid, high float64) {
	c := e.deck(side)
	if c == nil || e.isDisposed() {
		return
	}
	c.eq.Low.SetValue(low)
	c.eq.Mid.SetValue(mid)
	c.eq.High.SetValue(high)
}

// EQ returns a deck's band gains in dB.
func (e *Engine) EQ(side deck.Side) (low, mid, high float64) {
	c := e.deck(side)
	if c == nil {
		return 0, 0, 0
	}
	return c.eq.Low.Value(), c.eq.Mid.Value(), c.eq.High.Value()
}

// KillEQ silences one band of a deck.
func (e *Engine) KillEQ(side deck.Side, b Band) { e.setBand(side, b, math.Inf(-1)) }

// RestoreEQ returns one band of a deck to 0 dB.
func (e *Engine) RestoreEQ(side deck.Side, b Band) { e.setBand(side, b, 0) }

func (e *Engine) setBand(side deck.Side, b Band, db float64) {
	c := e.deck(side)
	if c == nil || e.isDisposed() {
		return
	}
	c.band(b).SetValue(db)
}

// SetFilter sets the filter response of a deck and ramps its cutoff to freq
// over FilterRamp seconds.
func (e *Engine) SetFilter(side deck.Side, freq float64, kind biquad.Kind) {
	c := e.deck(side)
	if c == nil || e.isDisposed() {
		return
	}
	c.filter.SetType(kind)
	c.filter.Frequency.RampTo(freq, FilterRamp)
}

// Filter returns a deck's filter type and current cutoff.
func (e *Engine) Filter(side deck.Side) (biquad.Kind, float64) {
	c := e.deck(side)
	if c == nil {
		return biquad.Lowpass, 0
	}
	return c.filter.Type(), c.filter.Frequency.Value()
}

// SetDelay sets the delay send level and feedback of a deck.
func (e *Engine) SetDelay(side deck.Side, wet, feedback float64) {
	c := e.deck(side)
	if c == nil || e.isDisposed() {
		return
	}
	c.delay.Wet.SetValue(wet)
	c.delay.Feedback.SetValue(feedback)
}

// Delay returns a deck's delay wet level and feedback.
func (e *Engine) Delay(side deck.Side) (wet, feedback float64) {
	c := e.deck(side)
	if c == nil {
		return 0, 0
	}
	return c.delay.Wet.Value(), c.delay.Feedback.Value()
}

// SetReverb sets the reverb send level of a deck.
func (e *Engine) SetReverb(side deck.Side, wet float64) {
	c := e.deck(side)
	if c == nil || e.isDisposed() {
		return
	}
	c.reverb.Wet.SetValue(wet)
}

// Reverb returns a deck's reverb wet level.
func (e *Engine) Reverb(side deck.Side) float64 {
	c := e.deck(side)
	if c == nil {
		return 0
	}
	return c.reverb.Wet.Value()
}

// SetVolume sets a deck channel's volume in dB.
func (e *Engine) SetVolume(side deck.Side, db float64) {
	c := e.deck(side)
	if c == nil || e.isDisposed() {
		return
	}
	c.channel.Volume.SetValue(db)
}

// Volume returns a deck channel's volume in dB.
func (e *Engine) Volume(side deck.Side) float64 {
	c := e.deck(side)
	if c == nil {
		return math.Inf(-1)
	}
	return c.channel.Volume.Value()
}

// SetMasterVolume sets the master bus volume in dB.
func (e *Engine) SetMasterVolume(db float64) {
	if e.isDisposed() {
		return
	}
	e.master.Volume.SetValue(db)
}

func (e *Engine) isDisposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// Reset cancels any running transition, centres the crossfader and returns
// every send parameter to its default.
func (e *Engine) Reset() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.current.Cancel()
	e.current = nil
	e.setCrossfadeLocked(CenterFade)
	e.mu.Unlock()

	for _, side := range deck.Sides {
		e.SetEQ(side, 0, 0, 0)
		e.SetFilter(side, FilterOpen, biquad.Lowpass)
		e.SetDelay(side, 0, 0)
		e.SetReverb(side, 0)
	}
}

// Dispose cancels any running transition and releases every node.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.current.Cancel()
	e.current = nil
	e.disposed = true
	for _, c := range e.decks {
		if c == nil {
			continue
		}
		for _, n := range c.nodes() {
			n.Dispose()
		}
	}
	e.xf.Dispose()
	e.master.Dispose()
}

// ExecuteTransition starts automating the mix according to s and returns
// the run handle. A transition already running is cancelled first.
// onProgress, if set, receives the progress in [0, 1] on every frame.
//
// The run's Done channel closes once Duration seconds of scheduler time have
// passed from the start, independent of the automation task.
func (e *Engine) ExecuteTransition(s Settings, onProgress func(float64)) (*Run, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return nil, graph.ErrDisposed
	}
	e.current.Cancel()

	start := e.sched.Now()
	if s.BeatAlign && e.aligner != nil {
		if wait := e.aligner(); wait > 0 && !math.IsInf(wait, 1) {
			start += wait
		}
	}
	r := &Run{id: uuid.NewString(), settings: s, start: start}
	r.task = e.sched.Every("transition "+s.Type.String(), func(now float64) error {
		if now < r.start {
			return nil
		}
		p := core.Clamp((now-r.start)/s.Duration, 0, 1)
		r.setProgress(p)
		e.applyProgress(s, p)
		if onProgress != nil {
			onProgress(p)
		}
		if p >= 1 {
			return sched.ErrDone
		}
		return nil
	})
	r.timer = e.sched.At("transition done", start+s.Duration, func(float64) {
		e.log.Debug("transition finished", "run", r.id, "type", s.Type.String())
	})
	e.current = r
	e.log.Info("transition started", "run", r.id, "type", s.Type.String(),
		"duration", s.Duration, "start", start)
	return r, nil
}

// Current returns the most recent run, or nil.
func (e *Engine) Current() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// applyProgress sets the mix for one automation frame.
func (e *Engine) applyProgress(s Settings, p float64) {
	switch s.Type {
	case Drop:
		if p < DropThreshold {
			e.SetCrossfade(0)
		} else {
			e.SetCrossfade(1)
		}
	case Echo:
		e.SetCrossfade(p)
		e.SetDelay(deck.A, p*EchoWet, EchoFeedback)
	case Filter:
		e.SetCrossfade(p)
		e.sweep(p)
	default:
		// SpinBack has no automation of its own yet.
		e.SetCrossfade(p)
	}
	if s.FilterSweep && s.Type != Filter {
		e.sweep(p)
	}
	if s.EQSwap && p > eqSwap[0] && p < eqSwap[1] {
		e.KillEQ(deck.A, Low)
		e.RestoreEQ(deck.B, Low)
		e.KillEQ(deck.B, High)
		e.RestoreEQ(deck.A, High)
	}
}

// sweep closes deck A's lowpass and opens deck B's highpass.
func (e *Engine) sweep(p float64) {
	e.SetFilter(deck.A, FilterOpen-p*(FilterOpen-SweepLowpassTo), biquad.Lowpass)
	e.SetFilter(deck.B, SweepHighFrom+p*(FilterOpen-SweepHighFrom), biquad.Highpass)
}
