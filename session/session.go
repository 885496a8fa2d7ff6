// Package session owns one running instance of every engine: the audio
// context, the scheduler, both decks with their channel strips and effect
// racks, the beat matcher, the transition engine, the track mixer and the
// master effect rack. It replaces global
// singletons with an explicit value that is created with New and released
// with Dispose.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/analysis"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/beatmatch"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/command"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/config"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/meter"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/mixer"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/rack"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/sched"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/source"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/stems"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/strip"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/transition"
)

// ErrNoStemService is returned by SeparateStems without a stems URL.
var ErrNoStemService = errors.New("session: no stem separation service configured")

// Option configures a Session.
type Option func(*options)

type options struct {
	log      *slog.Logger
	decoder  deck.Decoder
	analyzer deck.Analyzer
	stems    *stems.Client
}

// WithLogger sets the logger handed to every engine.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithDecoder replaces the file and URL decoder.
func WithDecoder(d deck.Decoder) Option { return func(o *options) { o.decoder = d } }

// WithAnalyzer replaces the analysis collaborator.
func WithAnalyzer(a deck.Analyzer) Option { return func(o *options) { o.analyzer = a } }

// WithStems replaces the stem separation client.
func WithStems(c *stems.Client) Option { return func(o *options) { o.stems = c } }

// Session is one mixing session. Methods are safe for concurrent use.
type Session struct {
	cfg   config.Config
	log   *slog.Logger
	gctx  *graph.Context
	sched *sched.Scheduler

	decks    [2]*deck.Deck
	strips   [2]*strip.Strip
	racks    [2]*rack.Rack
	matcher  *beatmatch.Matcher
	engine   *transition.Engine
	mixer    *mixer.Mixer
	rack     *rack.Rack
	commands *command.Registry
	stems    *stems.Client

	bus   *graph.Gain
	post  *graph.Gain
	meter *graph.Meter

	renderMu sync.Mutex
	frame    int // frames per scheduler tick
	pending  int
	scratch  [2][]float64

	mu       sync.Mutex
	sections [2][]beatmatch.Section
	disposed bool
}

// New builds a session from cfg.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	gctx := graph.NewContext(cfg.EngineOptions()...)
	fps := cfg.Engine.FrameRate
	if fps <= 0 {
		fps = core.DefaultEngineConfig().FrameRate
	}
	s := &Session{
		cfg:   cfg,
		log:   o.log,
		gctx:  gctx,
		bus:   graph.NewGain(gctx, 1),
		post:  graph.NewGain(gctx, 1),
		meter: graph.NewMeter(gctx, meter.DefaultSmoothing),
		frame: max(1, int(gctx.SampleRate()/fps)),
	}
	s.sched = sched.New(gctx, sched.WithLogger(o.log), sched.WithErrorHandler(func(t *sched.Task, err error) {
		s.log.Error("frame task failed", "task", t.Name(), "err", err)
	}))

	s.matcher = beatmatch.New(
		beatmatch.WithBpmChangeHandler(s.followTempo),
		beatmatch.WithPhaseAdjustHandler(s.adjustPhase),
	)

	curve, err := transition.ParseCurve(cfg.Transition.Curve)
	if err != nil {
		return nil, err
	}
	if _, err := s.transitionSettings(); err != nil {
		return nil, err
	}

	if o.decoder == nil {
		o.decoder = source.New(gctx.SampleRate(), source.WithLogger(o.log))
	}
	if o.analyzer == nil {
		o.analyzer = defaultAnalyzer(cfg, o.log)
	}
	s.stems = o.stems
	if s.stems == nil && cfg.Stems.URL != "" {
		s.stems = stems.NewClient(cfg.Stems.URL,
			stems.WithHTTPClient(&http.Client{Timeout: cfg.Stems.Timeout}),
			stems.WithLogger(o.log))
	}

	if s.engine, err = transition.New(gctx, s.sched,
		transition.WithLogger(o.log),
		transition.WithCurve(curve),
		transition.WithAligner(s.align),
		transition.WithOutput(s.bus),
	); err != nil {
		return nil, err
	}
	if s.mixer, err = mixer.New(gctx, mixer.WithLogger(o.log), mixer.WithOutput(s.bus)); err != nil {
		s.engine.Dispose()
		return nil, err
	}
	s.rack = rack.New(gctx, rack.DefaultRegistry(), rack.WithLogger(o.log))

	cb := deck.Callbacks{OnLoaded: s.loaded}
	for _, side := range deck.Sides {
		d := deck.New(side, gctx, s.sched,
			deck.WithDecoder(o.decoder),
			deck.WithAnalyzer(o.analyzer),
			deck.WithCallbacks(cb),
			deck.WithLogger(o.log),
		)
		s.decks[side] = d
		if err := s.routeDeck(side); err != nil {
			s.Dispose()
			return nil, fmt.Errorf("session: route deck %s: %w", side, err)
		}
	}

	if err := graph.Chain(s.post, s.meter, gctx.Destination()); err != nil {
		s.Dispose()
		return nil, fmt.Errorf("session: %w", err)
	}
	var effects []rack.Effect
	if cfg.Rack != "" {
		if effects, err = rack.Load(cfg.Rack); err != nil {
			s.Dispose()
			return nil, err
		}
	}
	if err := s.SetMasterEffects(effects); err != nil {
		s.Dispose()
		return nil, err
	}

	s.commands = command.NewRegistry()
	if err := command.Bind(s.commands, s, cfg.Controls); err != nil {
		s.Dispose()
		return nil, err
	}
	return s, nil
}

// routeDeck wires deck -> strip -> rack -> transition input. The strip starts
// with every stage bypassed and the rack empty.
func (s *Session) routeDeck(side deck.Side) error {
	st := strip.New(s.gctx)
	s.strips[side] = st
	s.racks[side] = rack.New(s.gctx, rack.DefaultRegistry(), rack.WithLogger(s.log))
	if err := st.Apply(strip.PassConfig()); err != nil {
		return err
	}
	if err := s.decks[side].Output().Connect(st.Input()); err != nil {
		return err
	}
	_, err := s.racks[side].Rebuild(nil, st.Output(), s.engine.Input(side))
	return err
}

func defaultAnalyzer(cfg config.Config, log *slog.Logger) deck.Analyzer {
	a := analysis.Analyzer{Sidecars: cfg.Sidecars, Optional: true}
	if cfg.Analysis.URL != "" {
		a.Client = analysis.NewClient(cfg.Analysis.URL,
			analysis.WithHTTPClient(&http.Client{Timeout: cfg.Analysis.Timeout}),
			analysis.WithLogger(log))
		a.Optional = false
	}
	return a
}

// Config returns the session configuration.
func (s *Session) Config() config.Config { return s.cfg }

// Context returns the audio graph context.
func (s *Session) Context() *graph.Context { return s.gctx }

// Scheduler returns the frame scheduler.
func (s *Session) Scheduler() *sched.Scheduler { return s.sched }

// Deck returns deck A or B.
func (s *Session) Deck(side deck.Side) *deck.Deck { return s.decks[side] }

// Strip returns the channel strip on a deck's path.
func (s *Session) Strip(side deck.Side) *strip.Strip { return s.strips[side] }

// Matcher returns the beat matcher.
func (s *Session) Matcher() *beatmatch.Matcher { return s.matcher }

// Transition returns the transition engine.
func (s *Session) Transition() *transition.Engine { return s.engine }

// Mixer returns the track mixer, which plays into the master bus.
func (s *Session) Mixer() *mixer.Mixer { return s.mixer }

// Commands returns the named command registry.
func (s *Session) Commands() *command.Registry { return s.commands }

// Load loads src on one deck.
func (s *Session) Load(ctx context.Context, side deck.Side, src string) error {
	if !side.Valid() {
		return fmt.Errorf("session: invalid deck %v", side)
	}
	return s.decks[side].Load(ctx, src)
}

// LoadPair loads both decks concurrently. Either source may be empty.
func (s *Session) LoadPair(ctx context.Context, srcA, srcB string) error {
	g, ctx := errgroup.WithContext(ctx)
	for side, src := range [2]string{srcA, srcB} {
		if src == "" {
			continue
		}
		g.Go(func() error { return s.decks[side].Load(ctx, src) })
	}
	return g.Wait()
}

// loaded installs the analysis grid of a freshly loaded deck.
func (s *Session) loaded(side deck.Side, info deck.LoadInfo) {
	res, _ := info.Analysis.(*analysis.Result)
	var sections []beatmatch.Section
	switch {
	case res != nil && len(res.Beats) > 0:
		if err := s.matcher.SetBeatGrid(side, res.Beats, res.Downbeats, info.BPM); err != nil {
			s.log.Warn("rejected beat grid", "deck", side.String(), "err", err)
			s.matcher.ClearBeatGrid(side)
			s.matcher.ChangeBpm(side, info.BPM)
		}
		sections = res.Sections
	default:
		s.matcher.ClearBeatGrid(side)
		s.matcher.ChangeBpm(side, info.BPM)
	}
	s.mu.Lock()
	s.sections[side] = sections
	s.mu.Unlock()
}

// SetPitch changes a deck's pitch and records the new BPM in the matcher.
func (s *Session) SetPitch(side deck.Side, percent float64) {
	if !side.Valid() {
		return
	}
	d := s.decks[side]
	d.SetPitch(percent)
	if st := d.State(); st.IsLoaded {
		s.matcher.ChangeBpm(side, st.BPM)
	}
}

// SyncTempo matches side's tempo to the other deck.
func (s *Session) SyncTempo(side deck.Side) {
	if !side.Valid() || !s.decks[side].State().IsLoaded {
		return
	}
	s.matcher.SyncTempo(side.Other())
}

// followTempo moves a deck's pitch so it plays at bpm.
func (s *Session) followTempo(side deck.Side, bpm float64) {
	d := s.decks[side]
	st := d.State()
	if !st.IsLoaded || st.OriginalBPM <= 0 {
		return
	}
	d.SetPitch((bpm/st.OriginalBPM - 1) * 100)
	// The pitch range may stop short of bpm.
	got := d.State()
	s.matcher.SetBpm(side, got.BPM)
	s.log.Debug("tempo synced", "deck", side.String(), "target", bpm, "bpm", got.BPM, "pitch", got.PitchPercent)
}

// ToggleBeatLock evaluates the phase of both decks and flips beat lock.
// Enabling it moves deck A onto deck B's beat phase.
func (s *Session) ToggleBeatLock() bool {
	locked, _ := s.matcher.ToggleBeatLock(s.decks[deck.A].CurrentTime(), s.decks[deck.B].CurrentTime())
	return locked
}

func (s *Session) adjustPhase(ms float64) {
	a := s.decks[deck.A]
	a.Seek(a.CurrentTime() + ms/1000)
}

// PhaseDifference returns the current beat phase difference in
// milliseconds.
func (s *Session) PhaseDifference() float64 {
	return s.matcher.CalculatePhaseDifference(s.decks[deck.A].CurrentTime(), s.decks[deck.B].CurrentTime())
}

// align returns the scheduler seconds until deck A reaches its next section
// boundary, or -1.
func (s *Session) align() float64 {
	st := s.decks[deck.A].State()
	wait := s.matcher.TimeToNextBoundary(st.CurrentTime, deck.A)
	if wait < 0 {
		return -1
	}
	return wait / (1 + st.PitchPercent/100)
}

// SuggestTransition proposes fade points from the loaded decks' sections.
func (s *Session) SuggestTransition() (beatmatch.TransitionPoint, bool) {
	s.mu.Lock()
	a, b := s.sections[deck.A], s.sections[deck.B]
	s.mu.Unlock()
	return beatmatch.SuggestTransitionPoint(a, b, s.decks[deck.A].CurrentTime())
}

func (s *Session) transitionSettings() (transition.Settings, error) {
	t := s.cfg.Transition
	typ, err := transition.ParseType(t.Type)
	if err != nil {
		return transition.Settings{}, err
	}
	st := transition.Settings{
		Type:        typ,
		Duration:    t.Duration,
		BeatAlign:   t.BeatAlign,
		EQSwap:      t.EQSwap,
		FilterSweep: t.FilterSweep,
	}
	return st, st.Validate()
}

// StartTransition runs the configured transition from deck A to deck B.
func (s *Session) StartTransition() error {
	st, err := s.transitionSettings()
	if err != nil {
		return err
	}
	_, err = s.engine.ExecuteTransition(st, nil)
	return err
}

// CancelTransition stops the running transition, if any.
func (s *Session) CancelTransition() {
	s.engine.Current().Cancel()
}

// SetMasterEffects rebuilds the master rack between the bus and the output.
func (s *Session) SetMasterEffects(effects []rack.Effect) error {
	nodes, err := s.rack.Rebuild(effects, s.bus, s.post)
	if err != nil {
		return err
	}
	s.log.Info("master rack rebuilt", "effects", len(nodes))
	return nil
}

// SetDeckEffects rebuilds one deck's effect rack between its strip and the
// transition engine.
func (s *Session) SetDeckEffects(side deck.Side, effects []rack.Effect) error {
	if !side.Valid() {
		return fmt.Errorf("session: invalid deck %v", side)
	}
	nodes, err := s.racks[side].Rebuild(effects, s.strips[side].Output(), s.engine.Input(side))
	if err != nil {
		return err
	}
	s.log.Info("deck rack rebuilt", "deck", side.String(), "effects", len(nodes))
	return nil
}

// SeparateStems requests stems for one deck's track, waits for the job and
// registers the stem sources on the deck.
func (s *Session) SeparateStems(ctx context.Context, side deck.Side) error {
	if s.stems == nil {
		return ErrNoStemService
	}
	d := s.decks[side]
	st := d.State()
	if !st.IsLoaded {
		return nil
	}
	job, err := s.stems.Request(ctx, analysis.FileID(st.Source), s.cfg.Stems.Model)
	if err != nil {
		return err
	}
	status, err := s.stems.Wait(ctx, job.ID, s.cfg.Stems.PollInterval)
	if err != nil {
		return err
	}
	sources := s.stems.Sources(status)
	for _, kind := range stems.SortedKinds(sources) {
		d.SetStemSource(kind, sources[kind])
	}
	s.log.Info("stems ready", "deck", side.String(), "kinds", stems.SortedKinds(sources))
	return nil
}

// SeparateAll separates both loaded decks concurrently.
func (s *Session) SeparateAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, side := range deck.Sides {
		g.Go(func() error { return s.SeparateStems(ctx, side) })
	}
	return g.Wait()
}

// MasterLevel returns the smoothed RMS and peak of the output in dB.
func (s *Session) MasterLevel() (rms, peak float64) {
	return s.meter.Level(), s.meter.Peak()
}

// MasterBands returns n band levels of the output in dB.
func (s *Session) MasterBands(n int) ([]float64, error) { return s.meter.Bands(n) }

// Render pulls len(l) frames of output. The scheduler ticks every
// FrameRate-th of a second of rendered audio, so deck positions and
// transition automation follow the rendered clock.
func (s *Session) Render(l, r []float64) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.render(l, r)
}

func (s *Session) render(l, r []float64) {
	n := min(len(l), len(r))
	for off := 0; off < n; {
		k := min(n-off, s.frame-s.pending)
		s.gctx.Render(l[off:off+k], r[off:off+k])
		off += k
		s.pending += k
		if s.pending >= s.frame {
			s.pending = 0
			s.sched.Tick()
		}
	}
}

// Stream implements beep.Streamer for live output.
func (s *Session) Stream(samples [][2]float64) (int, bool) {
	if s.isDisposed() {
		return 0, false
	}
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if cap(s.scratch[0]) < len(samples) {
		s.scratch = [2][]float64{make([]float64, len(samples)), make([]float64, len(samples))}
	}
	l, r := s.scratch[0][:len(samples)], s.scratch[1][:len(samples)]
	s.render(l, r)
	for i := range samples {
		samples[i] = [2]float64{l[i], r[i]}
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (s *Session) Err() error { return nil }

// Bounce renders seconds of output into a new buffer.
func (s *Session) Bounce(seconds float64) (*graph.Buffer, error) {
	n := int(seconds * s.gctx.SampleRate())
	if n <= 0 {
		return nil, fmt.Errorf("session: invalid bounce length %v", seconds)
	}
	l, r := make([]float64, n), make([]float64, n)
	s.Render(l, r)
	return graph.NewBuffer(s.gctx.SampleRate(), l, r)
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose releases every engine. The session renders silence afterwards.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	for _, d := range s.decks {
		if d != nil {
			d.Dispose()
		}
	}
	for side := range deck.Sides {
		if r := s.racks[side]; r != nil {
			r.Disconnect()
		}
		if st := s.strips[side]; st != nil {
			st.Dispose()
		}
	}
	if s.engine != nil {
		s.engine.Dispose()
	}
	if s.mixer != nil {
		s.mixer.Dispose()
	}
	if s.rack != nil {
		s.rack.Disconnect()
	}
	s.sched.Close()
	for _, n := range []graph.Node{s.bus, s.post, s.meter} {
		n.Dispose()
	}
	s.log.Debug("session disposed")
}
