// Package mixer is a multi-track mixer. Each track runs
// player -> pan -> effect rack -> channel strip -> channel -> meter into the
// master bus, with post-fader sends to a shared reverb and delay.
package mixer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/meter"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/rack"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/strip"
)

// ErrUnknownTrack is returned for a track id the mixer does not hold.
var ErrUnknownTrack = errors.New("mixer: unknown track")

// Send bus settings.
const (
	SendReverbDecay   = 2.5
	SendDelayTime     = 0.25
	SendDelayFeedback = 0.3
)

// Send names a send bus.
type Send int

// Send buses.
const (
	Reverb Send = iota
	Delay
	numSends
)

func (s Send) String() string {
	switch s {
	case Reverb:
		return "reverb"
	case Delay:
		return "delay"
	}
	return fmt.Sprintf("Send(%d)", int(s))
}

// ParseSend accepts reverb or delay.
func ParseSend(s string) (Send, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reverb":
		return Reverb, nil
	case "delay":
		return Delay, nil
	}
	return Reverb, fmt.Errorf("mixer: unknown send %q", s)
}

// TrackInfo is a snapshot of a track's controls.
type TrackInfo struct {
	ID       string
	Name     string
	Volume   float64 // dB
	Pan      float64
	Muted    bool
	Solo     bool
	Sends    [numSends]float64
	Duration float64
}

type track struct {
	info TrackInfo

	player  *graph.Player
	panner  *graph.Panner
	rackIn  *graph.Gain
	rack    *rack.Rack
	strip   *strip.Strip
	channel *graph.Channel
	meter   *graph.Meter
	sends   [numSends]*graph.Gain
}

func (t *track) dispose() {
	t.player.Dispose()
	t.panner.Dispose()
	t.rackIn.Dispose()
	t.rack.Disconnect()
	t.strip.Dispose()
	t.channel.Dispose()
	t.meter.Dispose()
	for _, s := range t.sends {
		s.Dispose()
	}
}

// Option configures a Mixer.
type Option func(*Mixer)

// WithLogger sets the mixer logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mixer) {
		if l != nil {
			m.log = l
		}
	}
}

// WithRegistry sets the effect registry used by track racks.
func WithRegistry(r *rack.Registry) Option { return func(m *Mixer) { m.registry = r } }

// WithOutput routes the master bus to n instead of the context destination.
func WithOutput(n graph.Node) Option {
	return func(m *Mixer) {
		if n != nil {
			m.output = n
		}
	}
}

// Mixer owns its tracks, the send buses and the master bus. Methods are safe
// for concurrent use.
type Mixer struct {
	ctx      *graph.Context
	log      *slog.Logger
	registry *rack.Registry
	output   graph.Node

	masterIn    *graph.Gain
	masterStrip *strip.Strip
	master      *graph.Channel
	masterMeter *graph.Meter
	sendBus     [numSends]*graph.Gain
	reverb      *graph.Reverb
	delay       *graph.FeedbackDelay

	mu       sync.Mutex
	tracks   map[string]*track
	order    []string
	disposed bool
}

// New builds the master bus and send returns on ctx.
func New(ctx *graph.Context, opts ...Option) (*Mixer, error) {
	m := &Mixer{
		ctx:         ctx,
		log:         slog.Default(),
		output:      ctx.Destination(),
		masterIn:    graph.NewGain(ctx, 1),
		masterStrip: strip.New(ctx),
		master:      graph.NewChannel(ctx, 0, 0),
		masterMeter: graph.NewMeter(ctx, meter.DefaultSmoothing),
		reverb:      graph.NewReverb(ctx, SendReverbDecay),
		delay:       graph.NewFeedbackDelay(ctx, SendDelayTime, SendDelayFeedback),
		tracks:      make(map[string]*track),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.registry == nil {
		m.registry = rack.DefaultRegistry()
	}
	m.log = m.log.With("component", "mixer")
	m.delay.Wet.SetValue(1)
	for i := range m.sendBus {
		m.sendBus[i] = graph.NewGain(ctx, 1)
	}

	err := errors.Join(
		graph.Chain(m.sendBus[Reverb], m.reverb, m.masterIn),
		graph.Chain(m.sendBus[Delay], m.delay, m.masterIn),
		graph.Chain(m.masterIn, m.masterStrip.Input()),
		graph.Chain(m.masterStrip.Output(), m.master, m.masterMeter, m.output),
	)
	if err != nil {
		m.Dispose()
		return nil, fmt.Errorf("mixer: %w", err)
	}
	return m, nil
}

// AddTrack creates a track playing buf and returns its id.
func (m *Mixer) AddTrack(name string, buf *graph.Buffer) (string, error) {
	if buf == nil {
		return "", errors.New("mixer: nil buffer")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return "", graph.ErrDisposed
	}

	t := &track{
		info: TrackInfo{
			ID:       uuid.NewString(),
			Name:     name,
			Duration: buf.Duration(),
		},
		player:  graph.NewPlayer(m.ctx, buf),
		panner:  graph.NewPanner(m.ctx, 0),
		rackIn:  graph.NewGain(m.ctx, 1),
		rack:    rack.New(m.ctx, m.registry, rack.WithLogger(m.log)),
		strip:   strip.New(m.ctx),
		channel: graph.NewChannel(m.ctx, 0, 0),
		meter:   graph.NewMeter(m.ctx, meter.DefaultSmoothing),
	}
	for i := range t.sends {
		t.sends[i] = graph.NewGain(m.ctx, 0)
	}
	err := errors.Join(
		graph.Chain(t.player, t.panner, t.rackIn, t.strip.Input()),
		graph.Chain(t.strip.Output(), t.channel, t.meter, m.masterIn),
		graph.Chain(t.meter, t.sends[Reverb], m.sendBus[Reverb]),
		graph.Chain(t.meter, t.sends[Delay], m.sendBus[Delay]),
	)
	if err != nil {
		t.dispose()
		return "", fmt.Errorf("mixer: add track %q: %w", name, err)
	}

	m.tracks[t.info.ID] = t
	m.order = append(m.order, t.info.ID)
	m.applyMutesLocked()
	m.log.Info("track added", "id", t.info.ID, "name", name, "duration", t.info.Duration)
	return t.info.ID, nil
}

// RemoveTrack disposes a track.
func (m *Mixer) RemoveTrack(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return err
	}
	t.dispose()
	delete(m.tracks, id)
	for i, k := range m.order {
		if k == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.applyMutesLocked()
	return nil
}

func (m *Mixer) trackLocked(id string) (*track, error) {
	t, ok := m.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrack, id)
	}
	return t, nil
}

// Track returns a snapshot of one track.
func (m *Mixer) Track(id string) (TrackInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return TrackInfo{}, err
	}
	return t.info, nil
}

// Tracks returns every track in the order they were added.
func (m *Mixer) Tracks() []TrackInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrackInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tracks[id].info)
	}
	return out
}

// SetVolume sets a track's fader in dB, clamped to [-Inf, 24].
func (m *Mixer) SetVolume(id string, db float64) error {
	return m.with(id, func(t *track) {
		if math.IsNaN(db) {
			return
		}
		t.info.Volume = math.Min(db, 24)
		t.channel.Volume.SetValue(t.info.Volume)
	})
}

// SetPan sets a track's stereo position in [-1, 1].
func (m *Mixer) SetPan(id string, pan float64) error {
	return m.with(id, func(t *track) {
		if math.IsNaN(pan) {
			return
		}
		t.info.Pan = core.Clamp(pan, -1, 1)
		t.panner.Pan.SetValue(t.info.Pan)
	})
}

// SetMute sets a track's own mute flag.
func (m *Mixer) SetMute(id string, muted bool) error {
	return m.with(id, func(t *track) {
		t.info.Muted = muted
		m.applyMutesLocked()
	})
}

// SetSolo sets a track's solo flag. While any track is soloed every track
// that is not soloed is silenced; a muted track stays muted when soloed.
func (m *Mixer) SetSolo(id string, solo bool) error {
	return m.with(id, func(t *track) {
		t.info.Solo = solo
		m.applyMutesLocked()
	})
}

// Audible reports whether a track currently reaches the master bus.
func (m *Mixer) Audible(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return false, err
	}
	return !t.channel.Muted(), nil
}

func (m *Mixer) applyMutesLocked() {
	soloed := false
	for _, t := range m.tracks {
		soloed = soloed || t.info.Solo
	}
	for _, t := range m.tracks {
		t.channel.SetMute(t.info.Muted || (soloed && !t.info.Solo))
	}
}

// SetSend sets a track's post-fader send level in [0, 1].
func (m *Mixer) SetSend(id string, s Send, level float64) error {
	if s < 0 || s >= numSends {
		return fmt.Errorf("mixer: unknown send %d", int(s))
	}
	return m.with(id, func(t *track) {
		if math.IsNaN(level) {
			return
		}
		t.info.Sends[s] = core.Clamp(level, 0, 1)
		t.sends[s].Gain.SetValue(t.info.Sends[s])
	})
}

// SetEffects rebuilds a track's effect rack from effects.
func (m *Mixer) SetEffects(id string, effects []rack.Effect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return err
	}
	if _, err := t.rack.Rebuild(effects, t.rackIn, t.strip.Input()); err != nil {
		return fmt.Errorf("mixer: track %s effects: %w", id, err)
	}
	return nil
}

// Effects returns the live effect nodes of a track.
func (m *Mixer) Effects(id string) ([]graph.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return nil, err
	}
	return t.rack.Nodes(), nil
}

// Strip returns a track's channel strip.
func (m *Mixer) Strip(id string) (*strip.Strip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return nil, err
	}
	return t.strip, nil
}

// MasterStrip returns the master bus channel strip.
func (m *Mixer) MasterStrip() *strip.Strip { return m.masterStrip }

// Play starts a track at context time when from its beginning.
func (m *Mixer) Play(id string, when float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return err
	}
	return t.player.Start(when, 0)
}

// Stop stops a track now.
func (m *Mixer) Stop(id string) error {
	return m.with(id, func(t *track) { t.player.Stop(m.ctx.Now()) })
}

// PlayAll starts every track at when.
func (m *Mixer) PlayAll(when float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tracks {
		if err := t.player.Start(when, 0); err != nil {
			m.log.Warn("play failed", "track", t.info.ID, "err", err)
		}
	}
}

// StopAll stops every track now.
func (m *Mixer) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.ctx.Now()
	for _, t := range m.tracks {
		t.player.Stop(now)
	}
}

// Playing reports whether a track's player is producing sound.
func (m *Mixer) Playing(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return false, err
	}
	return t.player.Playing(), nil
}

// Level returns a track's smoothed RMS and peak in dBFS. Unknown tracks
// read -Inf.
func (m *Mixer) Level(id string) (rms, peak float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[id]
	if !ok {
		return math.Inf(-1), math.Inf(-1)
	}
	return t.meter.Level(), t.meter.Peak()
}

// MasterLevel returns the master bus RMS and peak in dBFS.
func (m *Mixer) MasterLevel() (rms, peak float64) {
	return m.masterMeter.Level(), m.masterMeter.Peak()
}

// MasterBands returns n band levels of the master output in dB.
func (m *Mixer) MasterBands(n int) ([]float64, error) {
	return m.masterMeter.Bands(n)
}

// SetMasterVolume sets the master bus volume in dB.
func (m *Mixer) SetMasterVolume(db float64) {
	if math.IsNaN(db) {
		return
	}
	m.master.Volume.SetValue(db)
}

// MasterVolume returns the master bus volume in dB.
func (m *Mixer) MasterVolume() float64 { return m.master.Volume.Value() }

func (m *Mixer) with(id string, fn func(*track)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.trackLocked(id)
	if err != nil {
		return err
	}
	fn(t)
	return nil
}

// Dispose stops and releases every track and bus.
func (m *Mixer) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	for _, t := range m.tracks {
		t.dispose()
	}
	m.tracks = map[string]*track{}
	m.order = nil
	for _, n := range []graph.Node{m.masterIn, m.master, m.masterMeter, m.reverb, m.delay} {
		n.Dispose()
	}
	m.masterStrip.Dispose()
	for _, b := range m.sendBus {
		if b != nil {
			b.Dispose()
		}
	}
}
