// Package deck implements a DJ deck: a buffer player with transport, pitch,
// volume, hot cues and loops. Position tracking runs as a cancellable frame
// task on a sched.Scheduler; audio timing runs on the graph context clock.
package deck

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/sched"
)

// Decoder turns a source path or URL into audio.
type Decoder interface {
	Decode(ctx context.Context, src string) (*graph.Buffer, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, src string) (*graph.Buffer, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, src string) (*graph.Buffer, error) {
	return f(ctx, src)
}

// Analysis is the result of analysing a track.
type Analysis interface {
	InitialBPM() float64
}

// Analyzer queries the analysis collaborator for a source.
type Analyzer interface {
	Analyze(ctx context.Context, src string) (Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, src string) (Analysis, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, src string) (Analysis, error) {
	return f(ctx, src)
}

// LoadInfo describes a completed load.
type LoadInfo struct {
	Source   string
	Duration float64
	BPM      float64
	// Analysis is nil when the deck has no analyzer.
	Analysis Analysis
}

// Callbacks receive deck events. They run on the goroutine that caused the
// event, outside the deck lock.
type Callbacks struct {
	OnTimeUpdate func(side Side, t float64)
	OnLoaded     func(side Side, info LoadInfo)
	OnEnded      func(side Side)
}

// Option configures a Deck.
type Option func(*Deck)

// WithDecoder sets the audio decoder.
func WithDecoder(d Decoder) Option { return func(k *Deck) { k.decoder = d } }

// WithAnalyzer sets the analysis collaborator.
func WithAnalyzer(a Analyzer) Option { return func(k *Deck) { k.analyzer = a } }

// WithCallbacks installs event callbacks.
func WithCallbacks(cb Callbacks) Option { return func(k *Deck) { k.cb = cb } }

// WithLogger sets the deck logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Deck) {
		if l != nil {
			k.log = l
		}
	}
}

// Deck is one playback unit. Every method is safe for concurrent use.
type Deck struct {
	side     Side
	gctx     *graph.Context
	sched    *sched.Scheduler
	out      *graph.Channel
	decoder  Decoder
	analyzer Analyzer
	cb       Callbacks
	log      *slog.Logger

	mu       sync.Mutex
	gen      uint64
	player   *graph.Player
	state    State
	cues     [NumHotCues]HotCue
	cue      float64
	loop     Loop
	task     *sched.Task
	startPos float64 // buffer position at startCtx
	startCtx float64 // context time playback last (re)started
	stems    map[string]string
	disposed bool
}

// New creates an empty deck on the graph context. Position updates run on
// s, which should be clocked by gctx.
func New(side Side, gctx *graph.Context, s *sched.Scheduler, opts ...Option) *Deck {
	d := &Deck{
		side:  side,
		gctx:  gctx,
		sched: s,
		out:   graph.NewChannel(gctx, core.GainToDB(DefaultVolume), 0),
		log:   slog.Default(),
		state: initialState(),
		cues:  defaultCues(),
		loop:  defaultLoop(),
		stems: make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.log = d.log.With("deck", side.String())
	return d
}

// Side returns which deck this is.
func (d *Deck) Side() Side { return d.side }

// Output is the deck's channel node; connect it onward.
func (d *Deck) Output() *graph.Channel { return d.out }

// State returns a snapshot of the transport state.
func (d *Deck) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// CurrentTime returns the playback position in seconds.
func (d *Deck) CurrentTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.CurrentTime
}

// HotCues returns the five cue slots.
func (d *Deck) HotCues() [NumHotCues]HotCue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cues
}

// Loop returns the loop region.
func (d *Deck) Loop() Loop {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loop
}

// Task returns the active position task, or nil when not playing.
func (d *Deck) Task() *sched.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.task
}

// Load decodes src, queries the analyzer and installs the result. A load
// overtaken by a newer Load or Unload disposes what it built and returns
// ErrLoadSuperseded. The previous player is stopped and disposed before the
// new one is installed.
func (d *Deck) Load(ctx context.Context, src string) error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return graph.ErrDisposed
	}
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	if d.decoder == nil {
		return &LoadError{Source: src, Op: "decode", Err: ErrNoDecoder}
	}
	buf, err := d.decoder.Decode(ctx, src)
	if err != nil {
		if d.superseded(gen) {
			return ErrLoadSuperseded
		}
		return &LoadError{Source: src, Op: "decode", Err: err}
	}

	bpm := DefaultBPM
	var res Analysis
	if d.analyzer != nil {
		res, err = d.analyzer.Analyze(ctx, src)
		if err != nil {
			if d.superseded(gen) {
				return ErrLoadSuperseded
			}
			return &LoadError{Source: src, Op: "analyze", Err: err}
		}
		if b := res.InitialBPM(); b > 0 {
			bpm = b
		}
	}

	player := graph.NewPlayer(d.gctx, buf)
	if err := player.Connect(d.out); err != nil {
		player.Dispose()
		return &LoadError{Source: src, Op: "decode", Err: err}
	}

	d.mu.Lock()
	if gen != d.gen || d.disposed {
		d.mu.Unlock()
		player.Dispose()
		return ErrLoadSuperseded
	}
	d.releaseLocked()
	d.player = player
	vol, muted := d.state.Volume, d.state.IsMuted
	d.state = initialState()
	d.state.Volume, d.state.IsMuted = vol, muted
	d.state.IsLoaded = true
	d.state.Duration = buf.Duration()
	d.state.BPM = bpm
	d.state.OriginalBPM = bpm
	d.state.Source = src
	d.cues = defaultCues()
	d.cue = 0
	d.loop = defaultLoop()
	d.stems = make(map[string]string)
	info := LoadInfo{Source: src, Duration: d.state.Duration, BPM: bpm, Analysis: res}
	d.mu.Unlock()

	d.log.Info("track loaded", "source", src, "duration", info.Duration, "bpm", bpm)
	if d.cb.OnLoaded != nil {
		d.cb.OnLoaded(d.side, info)
	}
	return nil
}

func (d *Deck) superseded(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen != d.gen || d.disposed
}

// releaseLocked cancels the frame task and disposes the player.
func (d *Deck) releaseLocked() {
	d.cancelTaskLocked()
	if d.player != nil {
		d.player.Stop(d.gctx.Now())
		d.player.Dispose()
		d.player = nil
	}
}

func (d *Deck) cancelTaskLocked() {
	if d.task != nil {
		d.task.Cancel()
		d.task = nil
	}
}

// Unload stops playback, releases the player and resets the deck. A load
// in flight is superseded.
func (d *Deck) Unload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if !d.state.IsLoaded {
		return
	}
	d.releaseLocked()
	d.state = initialState()
	d.cues = defaultCues()
	d.cue = 0
	d.loop = defaultLoop()
	d.stems = make(map[string]string)
	d.out.Volume.SetValue(core.GainToDB(DefaultVolume))
	d.out.SetMute(false)
}

// Dispose unloads the deck and disposes its output channel.
func (d *Deck) Dispose() {
	d.Unload()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disposed = true
	d.out.Dispose()
}

// Play starts playback from the current position.
func (d *Deck) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded || d.state.IsPlaying || d.player == nil {
		return
	}
	now := d.gctx.Now()
	if err := d.player.Start(now, d.state.CurrentTime); err != nil {
		d.log.Warn("play failed", "err", err)
		return
	}
	d.startPos, d.startCtx = d.state.CurrentTime, now
	d.state.IsPlaying, d.state.IsPaused = true, false
	d.task = d.sched.Every("deck "+d.side.String(), d.frame)
}

// Pause stops playback and keeps the position.
func (d *Deck) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded || !d.state.IsPlaying {
		return
	}
	now := d.gctx.Now()
	d.state.CurrentTime = math.Min(d.positionLocked(now), d.state.Duration)
	d.player.Stop(now)
	d.cancelTaskLocked()
	d.state.IsPlaying, d.state.IsPaused = false, true
}

// PlayPause toggles between Play and Pause.
func (d *Deck) PlayPause() {
	if d.State().IsPlaying {
		d.Pause()
		return
	}
	d.Play()
}

// Stop halts playback and rewinds to the start.
func (d *Deck) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	d.stopLocked(d.gctx.Now())
}

func (d *Deck) stopLocked(now float64) {
	if d.player != nil {
		d.player.Stop(now)
	}
	d.cancelTaskLocked()
	d.state.IsPlaying, d.state.IsPaused = false, false
	d.state.CurrentTime = 0
}

// Seek moves to t, clamped to [0, duration]. While playing the player is
// restarted at the same context time so there is no gap.
func (d *Deck) Seek(t float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	d.seekLocked(t)
}

func (d *Deck) seekLocked(t float64) {
	t = core.Clamp(t, 0, d.state.Duration)
	d.state.CurrentTime = t
	if d.state.IsPlaying {
		d.restartLocked(d.gctx.Now(), t)
	}
}

func (d *Deck) restartLocked(now, t float64) {
	d.player.Stop(now)
	if err := d.player.Start(now, t); err != nil {
		d.log.Warn("restart failed", "err", err)
	}
	d.startPos, d.startCtx = t, now
}

// BeatJump moves by the given number of beats at the current BPM.
func (d *Deck) BeatJump(beats float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded || d.state.BPM <= 0 {
		return
	}
	d.seekLocked(d.state.CurrentTime + beats*60/d.state.BPM)
}

func (d *Deck) rateLocked() float64 { return 1 + d.state.PitchPercent/100 }

func (d *Deck) positionLocked(now float64) float64 {
	return d.startPos + (now-d.startCtx)*d.rateLocked()
}

// SetPitch sets the tempo offset in percent, clamped to [-8, 8]. The player
// rate and the BPM change under the same lock.
func (d *Deck) SetPitch(p float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	p = core.Clamp(p, -MaxPitch, MaxPitch)
	if d.state.IsPlaying {
		now := d.gctx.Now()
		d.startPos, d.startCtx = d.positionLocked(now), now
	}
	d.state.PitchPercent = p
	d.state.BPM = bpmFor(d.state.OriginalBPM, p)
	d.player.PlaybackRate.SetValue(d.rateLocked())
}

// SetVolume sets the level in [0, 1] and unmutes.
func (d *Deck) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	v = core.Clamp(v, 0, 1)
	d.state.Volume = v
	d.state.IsMuted = false
	d.out.Volume.SetValue(core.GainToDB(v))
	d.out.SetMute(false)
}

// ToggleMute flips the mute state.
func (d *Deck) ToggleMute() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	d.state.IsMuted = !d.state.IsMuted
	d.out.SetMute(d.state.IsMuted)
}

// Cue stores the current position as the cue point while the deck is not
// playing. While playing it returns to the cue point and pauses.
func (d *Deck) Cue() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	if !d.state.IsPlaying {
		d.cue = d.state.CurrentTime
		return
	}
	d.player.Stop(d.gctx.Now())
	d.cancelTaskLocked()
	d.state.IsPlaying, d.state.IsPaused = false, true
	d.state.CurrentTime = d.cue
}

// CuePoint returns the cue point set by Cue.
func (d *Deck) CuePoint() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cue
}

func cueIndex(i int) (int, bool) {
	if i < 1 || i > NumHotCues {
		return 0, false
	}
	return i - 1, true
}

// SetHotCue stores the current position in cue i (1 to 5).
func (d *Deck) SetHotCue(i int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := cueIndex(i)
	if !d.state.IsLoaded || !ok {
		return
	}
	d.cues[k].Time = d.state.CurrentTime
	d.cues[k].Set = true
}

// JumpToHotCue seeks to cue i. An empty cue is ignored.
func (d *Deck) JumpToHotCue(i int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := cueIndex(i)
	if !d.state.IsLoaded || !ok || !d.cues[k].Set {
		return
	}
	d.seekLocked(d.cues[k].Time)
}

// ClearHotCue empties cue i.
func (d *Deck) ClearHotCue(i int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := cueIndex(i)
	if !d.state.IsLoaded || !ok {
		return
	}
	d.cues[k].Set = false
	d.cues[k].Time = 0
}

// SetLoopIn marks the loop start at the current position. An end at or
// before the new start is dropped and the loop deactivated.
func (d *Deck) SetLoopIn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	d.loop.Start, d.loop.HasStart = d.state.CurrentTime, true
	if d.loop.HasEnd && d.loop.End <= d.loop.Start {
		d.loop.HasEnd, d.loop.End, d.loop.IsActive = false, 0, false
	}
}

// SetLoopOut marks the loop end at the current position and activates the
// loop. It is ignored without a start or when the position is not after it.
func (d *Deck) SetLoopOut() {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.state.CurrentTime
	if !d.state.IsLoaded || !d.loop.HasStart || t <= d.loop.Start {
		return
	}
	d.loop.End, d.loop.HasEnd = t, true
	d.loop.IsActive = true
}

// SetAutoLoop loops the given number of bars from the current position.
func (d *Deck) SetAutoLoop(bars float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded || bars <= 0 || d.state.BPM <= 0 {
		return
	}
	start := d.state.CurrentTime
	d.loop = Loop{
		IsActive: true,
		Start:    start,
		End:      start + bars*BeatsPerBar*60/d.state.BPM,
		HasStart: true,
		HasEnd:   true,
		Bars:     bars,
	}
}

// ToggleLoop flips the loop on or off. A loop without both bounds stays off.
func (d *Deck) ToggleLoop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	d.loop.IsActive = !d.loop.IsActive && d.loop.bounded()
}

// ClearLoop removes the loop region.
func (d *Deck) ClearLoop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	d.loop = defaultLoop()
}

// LoopHalve halves the loop length, keeping its start.
func (d *Deck) LoopHalve() { d.scaleLoop(0.5) }

// LoopDouble doubles the loop length, keeping its start.
func (d *Deck) LoopDouble() { d.scaleLoop(2) }

func (d *Deck) scaleLoop(f float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded || !d.loop.bounded() {
		return
	}
	d.loop.End = d.loop.Start + (d.loop.End-d.loop.Start)*f
	d.loop.Bars *= f
}

// SetStemSource records an alternative source for a stem kind such as
// "vocals" or "drums". An empty url removes it.
func (d *Deck) SetStemSource(kind, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.IsLoaded {
		return
	}
	if url == "" {
		delete(d.stems, kind)
		return
	}
	d.stems[kind] = url
}

// StemSources returns a copy of the registered stem sources.
func (d *Deck) StemSources() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.stems))
	for k, v := range d.stems {
		out[k] = v
	}
	return out
}

// frame advances the position once per scheduler tick.
func (d *Deck) frame(now float64) error {
	d.mu.Lock()
	if !d.state.IsPlaying {
		d.mu.Unlock()
		return sched.ErrDone
	}
	t := d.positionLocked(now)
	ended := false
	switch {
	case d.loop.IsActive && d.loop.bounded() && t >= d.loop.End:
		t = d.loop.Start
		d.state.CurrentTime = t
		d.restartLocked(now, t)
	case t >= d.state.Duration:
		d.stopLocked(now)
		ended = true
	default:
		d.state.CurrentTime = t
	}
	d.mu.Unlock()

	if ended {
		d.log.Debug("track ended")
		if d.cb.OnEnded != nil {
			d.cb.OnEnded(d.side)
		}
		return sched.ErrDone
	}
	if d.cb.OnTimeUpdate != nil {
		d.cb.OnTimeUpdate(d.side, t)
	}
	return nil
}

// UseStem switches playback to the stem registered for kind, or back to the
// loaded mix when kind is empty. Position, pitch, cues and loop are kept and
// playback continues without a gap.
func (d *Deck) UseStem(ctx context.Context, kind string) error {
	d.mu.Lock()
	if !d.state.IsLoaded {
		d.mu.Unlock()
		return nil
	}
	src := d.state.Source
	if kind != "" {
		url, ok := d.stems[kind]
		if !ok {
			d.mu.Unlock()
			return fmt.Errorf("deck: no %q stem on deck %s", kind, d.side)
		}
		src = url
	}
	gen := d.gen
	d.mu.Unlock()

	if d.decoder == nil {
		return &LoadError{Source: src, Op: "decode", Err: ErrNoDecoder}
	}
	buf, err := d.decoder.Decode(ctx, src)
	if err != nil {
		return &LoadError{Source: src, Op: "decode", Err: err}
	}
	player := graph.NewPlayer(d.gctx, buf)
	if err := player.Connect(d.out); err != nil {
		player.Dispose()
		return &LoadError{Source: src, Op: "decode", Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || d.disposed || d.player == nil {
		player.Dispose()
		return ErrLoadSuperseded
	}
	now := d.gctx.Now()
	old := d.player
	player.PlaybackRate.SetValue(d.rateLocked())
	if d.state.IsPlaying {
		t := d.positionLocked(now)
		old.Stop(now)
		if err := player.Start(now, t); err != nil {
			player.Dispose()
			return err
		}
		d.startPos, d.startCtx = t, now
		d.state.CurrentTime = t
	}
	old.Dispose()
	d.player = player
	d.log.Info("stem selected", "kind", kind, "source", src)
	return nil
}
