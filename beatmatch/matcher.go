// Package beatmatch aligns two decks by tempo and beat phase. It holds the
// beat grids supplied by analysis and computes phase differences, section
// boundaries and transition points. It never moves playback itself.
package beatmatch

import (
	"fmt"
	"math"
	"sync"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
)

// Matching constants.
const (
	DefaultBPM = 120.0
	// AlignedWithinMs is the phase difference under which decks count as
	// aligned.
	AlignedWithinMs = 10.0
	// CompatiblePercent is the largest BPM difference, relative to the
	// mean, at which two decks are considered mixable.
	CompatiblePercent = 8.0
)

// State is a snapshot of the matcher.
type State struct {
	TempoSync    bool
	BeatLock     bool
	BpmA         float64
	BpmB         float64
	OriginalBpmA float64
	OriginalBpmB float64
	// PhaseDifference is in milliseconds of deck A's beat interval.
	PhaseDifference float64
	IsAligned       bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithBpmChangeHandler is called when SyncTempo changes a deck's BPM.
func WithBpmChangeHandler(fn func(side deck.Side, bpm float64)) Option {
	return func(m *Matcher) { m.onBpmChange = fn }
}

// WithPhaseAdjustHandler is called with the requested correction in
// milliseconds when beat lock is enabled.
func WithPhaseAdjustHandler(fn func(ms float64)) Option {
	return func(m *Matcher) { m.onPhaseAdjust = fn }
}

// Matcher owns the beat match state. It is safe for concurrent use; handlers
// run after the internal lock is released.
type Matcher struct {
	mu    sync.Mutex
	grids [2]Grid
	bpm   [2]float64
	orig  [2]float64

	tempoSync bool
	beatLock  bool
	phaseDiff float64
	isAligned bool

	onBpmChange   func(deck.Side, float64)
	onPhaseAdjust func(float64)
}

// New returns a matcher with both decks at DefaultBPM and empty grids.
func New(opts ...Option) *Matcher {
	m := &Matcher{}
	m.reset()
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Matcher) reset() {
	m.grids = [2]Grid{}
	m.bpm = [2]float64{DefaultBPM, DefaultBPM}
	m.orig = m.bpm
	m.tempoSync, m.beatLock, m.isAligned = false, false, false
	m.phaseDiff = 0
}

// Reset clears both grids and all flags.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// SetBeatGrid replaces one deck's grid and resets its BPM and original BPM
// to bpm. Malformed grids are rejected with ErrInvalidGrid.
func (m *Matcher) SetBeatGrid(side deck.Side, beats, downbeats []float64, bpm float64) error {
	if !side.Valid() {
		return fmt.Errorf("beatmatch: invalid deck %v", side)
	}
	g := Grid{Beats: beats, Downbeats: downbeats, BPM: bpm}
	if err := g.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grids[side] = g.clone()
	m.bpm[side] = bpm
	m.orig[side] = bpm
	return nil
}

// ClearBeatGrid empties one deck's grid, as on unload.
func (m *Matcher) ClearBeatGrid(side deck.Side) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grids[side] = Grid{}
	m.bpm[side] = DefaultBPM
	m.orig[side] = DefaultBPM
}

// Grid returns a copy of one deck's grid.
func (m *Matcher) Grid(side deck.Side) Grid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grids[side].clone()
}

// SyncTempo sets the other deck's BPM to source's current BPM and marks
// tempo sync. It returns the target BPM.
func (m *Matcher) SyncTempo(source deck.Side) float64 {
	m.mu.Lock()
	target := m.bpm[source]
	m.bpm[source.Other()] = target
	m.tempoSync = true
	fn := m.onBpmChange
	m.mu.Unlock()

	if fn != nil {
		fn(source.Other(), target)
	}
	return target
}

// ChangeBpm records a manual BPM change on one deck and clears tempo sync.
func (m *Matcher) ChangeBpm(side deck.Side, bpm float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bpm > 0 {
		m.bpm[side] = bpm
	}
	m.tempoSync = false
}

// SetBpm records the BPM a deck actually plays at without touching tempo
// sync. A synced deck whose pitch range cannot reach the target reports the
// tempo it landed on.
func (m *Matcher) SetBpm(side deck.Side, bpm float64) {
	if bpm <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bpm[side] = bpm
}

// CalculatePhaseDifference returns the beat phase difference between the
// decks at the given playback times, in milliseconds. The cycle difference
// is wrapped into [-0.5, 0.5] and converted using deck A's beat interval for
// both decks, so the result depends on which deck is A. It returns 0 while
// either grid is empty. The stored difference and alignment are updated.
func (m *Matcher) CalculatePhaseDifference(timeA, timeB float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluate(timeA, timeB)
}

func (m *Matcher) evaluate(timeA, timeB float64) float64 {
	diff := 0.0
	if !m.grids[deck.A].Empty() && !m.grids[deck.B].Empty() {
		diff = phaseDifference(timeA, timeB, m.bpm[deck.A], m.bpm[deck.B])
	}
	m.phaseDiff = diff
	m.isAligned = math.Abs(diff) < AlignedWithinMs
	return diff
}

func phaseDifference(timeA, timeB, bpmA, bpmB float64) float64 {
	intervalA := 60 / bpmA
	intervalB := 60 / bpmB
	phaseA := math.Mod(timeA, intervalA) / intervalA
	phaseB := math.Mod(timeB, intervalB) / intervalB
	d := phaseA - phaseB
	if d > 0.5 {
		d--
	}
	if d < -0.5 {
		d++
	}
	return d * intervalA * 1000
}

// ToggleBeatLock evaluates the phase difference and flips beat lock. When
// lock is being enabled it returns the correction in milliseconds the
// caller should apply to deck A, the negated difference, and notifies the
// phase adjust handler. Disabling returns a zero correction.
func (m *Matcher) ToggleBeatLock(timeA, timeB float64) (locked bool, correctionMs float64) {
	m.mu.Lock()
	diff := m.evaluate(timeA, timeB)
	m.beatLock = !m.beatLock
	locked = m.beatLock
	fn := m.onPhaseAdjust
	m.mu.Unlock()

	if !locked {
		return false, 0
	}
	correctionMs = -diff
	if fn != nil {
		fn(correctionMs)
	}
	return true, correctionMs
}

// TimeToNextBoundary returns the seconds from t to the first section
// boundary strictly after t on side, or -1 when none remain.
func (m *Matcher) TimeToNextBoundary(t float64, side deck.Side) float64 {
	b, ok := m.NextBoundary(t, side)
	if !ok {
		return -1
	}
	return b - t
}

// NextBoundary returns the first section boundary strictly after t.
func (m *Matcher) NextBoundary(t float64, side deck.Side) (float64, bool) {
	m.mu.Lock()
	g := m.grids[side]
	bpm := m.bpm[side]
	m.mu.Unlock()
	return firstAfter(FindSectionBoundaries(g.Downbeats, bpm), t)
}

// NearestBeat returns the index of side's beat closest to t, or -1.
func (m *Matcher) NearestBeat(t float64, side deck.Side) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return FindNearestBeat(t, m.grids[side].Beats)
}

// BpmDifference returns |bpmA - bpmB|.
func (m *Matcher) BpmDifference() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return math.Abs(m.bpm[deck.A] - m.bpm[deck.B])
}

// AreBpmsCompatible reports whether the BPM difference is at most 8 % of the
// mean BPM.
func (m *Matcher) AreBpmsCompatible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return compatible(m.bpm[deck.A], m.bpm[deck.B])
}

func compatible(a, b float64) bool {
	avg := (a + b) / 2
	if avg <= 0 {
		return false
	}
	return math.Abs(a-b)/avg*100 <= CompatiblePercent
}

// BPM returns a deck's current BPM.
func (m *Matcher) BPM(side deck.Side) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bpm[side]
}

// State returns a snapshot.
func (m *Matcher) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		TempoSync:       m.tempoSync,
		BeatLock:        m.beatLock,
		BpmA:            m.bpm[deck.A],
		BpmB:            m.bpm[deck.B],
		OriginalBpmA:    m.orig[deck.A],
		OriginalBpmB:    m.orig[deck.B],
		PhaseDifference: m.phaseDiff,
		IsAligned:       m.isAligned,
	}
}
