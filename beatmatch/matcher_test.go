package beatmatch

import (
	"errors"
	"math"
	"testing"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/internal/testutil"
)

// grid returns n beats at bpm starting at offset, with a downbeat every
// fourth beat.
func grid(bpm, offset float64, n int) (beats, downbeats []float64) {
	interval := 60 / bpm
	for i := range n {
		b := offset + float64(i)*interval
		beats = append(beats, b)
		if i%4 == 0 {
			downbeats = append(downbeats, b)
		}
	}
	return beats, downbeats
}

func loaded(t *testing.T, bpmA, bpmB float64) *Matcher {
	t.Helper()
	m := New()
	ba, da := grid(bpmA, 0, 64)
	bb, db := grid(bpmB, 0, 64)
	if err := m.SetBeatGrid(deck.A, ba, da, bpmA); err != nil {
		t.Fatal(err)
	}
	if err := m.SetBeatGrid(deck.B, bb, db, bpmB); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestBeatLockAlignedAtZero(t *testing.T) {
	t.Parallel()

	m := loaded(t, 120, 120)
	locked, corr := m.ToggleBeatLock(0, 0)
	if !locked || corr != 0 {
		t.Fatalf("ToggleBeatLock = %v, %v", locked, corr)
	}
	st := m.State()
	if st.PhaseDifference != 0 || !st.IsAligned || !st.BeatLock {
		t.Fatalf("state = %+v", st)
	}

	locked, corr = m.ToggleBeatLock(0.1, 0)
	if locked || corr != 0 {
		t.Fatalf("disabling lock returned %v, %v", locked, corr)
	}
	if m.State().IsAligned {
		t.Fatal("100 ms offset reported aligned")
	}
}

func TestPhaseDifference(t *testing.T) {
	t.Parallel()

	m := loaded(t, 120, 120)
	tests := []struct {
		name      string
		tA, tB    float64
		wantMs    float64
		wantAlign bool
	}{
		{"same phase", 1.0, 3.0, 0, true},
		{"A ahead 100ms", 0.1, 0, 100, false},
		{"B ahead 100ms", 0, 0.1, -100, false},
		{"wraps to negative", 0.4, 0, -100, false},
		{"within tolerance", 0.005, 0, 5, true},
	}
	for _, tt := range tests {
		got := m.CalculatePhaseDifference(tt.tA, tt.tB)
		testutil.RequireNear(t, tt.name, got, tt.wantMs, 1e-9)
		if m.State().IsAligned != tt.wantAlign {
			t.Errorf("%s: aligned = %v", tt.name, !tt.wantAlign)
		}
	}
}

// Deck A's interval is the unit for both decks, so swapping the roles of
// two decks at different tempos changes the magnitude.
func TestPhaseDifferenceUsesDeckAInterval(t *testing.T) {
	t.Parallel()

	ab := loaded(t, 120, 60)
	// phaseA 0.2 of 0.5 s, phaseB 0 -> 0.2 * 500 ms
	testutil.RequireNear(t, "A=120", ab.CalculatePhaseDifference(0.1, 0), 100, 1e-9)

	ba := loaded(t, 60, 120)
	// phaseA 0 of 1 s, phaseB 0.2 -> -0.2 * 1000 ms
	testutil.RequireNear(t, "A=60", ba.CalculatePhaseDifference(0, 0.1), -200, 1e-9)
}

func TestPhaseDifferenceEmptyGrid(t *testing.T) {
	t.Parallel()

	m := New()
	beats, down := grid(120, 0, 8)
	_ = m.SetBeatGrid(deck.A, beats, down, 120)
	if got := m.CalculatePhaseDifference(0.1, 0); got != 0 {
		t.Fatalf("got %v with empty B grid", got)
	}
}

func TestPhaseAdjustHandler(t *testing.T) {
	t.Parallel()

	var got []float64
	m := New(WithPhaseAdjustHandler(func(ms float64) { got = append(got, ms) }))
	ba, da := grid(120, 0, 16)
	_ = m.SetBeatGrid(deck.A, ba, da, 120)
	_ = m.SetBeatGrid(deck.B, ba, da, 120)

	m.ToggleBeatLock(0.1, 0)
	m.ToggleBeatLock(0.1, 0)
	if len(got) != 1 {
		t.Fatalf("handler called %d times, want 1", len(got))
	}
	testutil.RequireNear(t, "correction", got[0], -100, 1e-9)
}

func TestSyncTempo(t *testing.T) {
	t.Parallel()

	var side deck.Side
	var bpm float64
	m := New(WithBpmChangeHandler(func(s deck.Side, b float64) { side, bpm = s, b }))
	ba, da := grid(128, 0, 16)
	bb, db := grid(124, 0, 16)
	_ = m.SetBeatGrid(deck.A, ba, da, 128)
	_ = m.SetBeatGrid(deck.B, bb, db, 124)

	if got := m.SyncTempo(deck.A); got != 128 {
		t.Fatalf("SyncTempo returned %v", got)
	}
	st := m.State()
	if !st.TempoSync || st.BpmB != 128 || st.OriginalBpmB != 124 {
		t.Fatalf("state = %+v", st)
	}
	if side != deck.B || bpm != 128 {
		t.Fatalf("handler got %v %v", side, bpm)
	}

	m.SetBpm(deck.B, 134)
	m.SetBpm(deck.B, -1)
	st = m.State()
	if !st.TempoSync || st.BpmB != 134 {
		t.Fatalf("SetBpm changed sync or ignored the tempo: %+v", st)
	}

	m.ChangeBpm(deck.A, 130)
	st = m.State()
	if st.TempoSync || st.BpmA != 130 {
		t.Fatalf("ChangeBpm did not clear sync: %+v", st)
	}
}

func TestBpmCompatibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b float64
		want bool
	}{
		{120, 128, true},  // 6.45 %
		{120, 135, false}, // 11.76 %
		{120, 120, true},
		{100, 108, true}, // 7.69 %
	}
	for _, tt := range tests {
		m := loaded(t, tt.a, tt.b)
		if got := m.AreBpmsCompatible(); got != tt.want {
			t.Errorf("%v/%v compatible = %v", tt.a, tt.b, got)
		}
		testutil.RequireNear(t, "difference", m.BpmDifference(), math.Abs(tt.a-tt.b), 1e-12)
	}
}

func TestFindSectionBoundaries(t *testing.T) {
	t.Parallel()

	down := make([]float64, 17)
	for i := range down {
		down[i] = float64(i) * 2
	}
	got := FindSectionBoundaries(down, 120)
	want := []float64{down[0], down[8], down[16]}
	testutil.RequireSliceNearlyEqual(t, got, want, 0)

	if got := FindSectionBoundaries(nil, 120); len(got) != 0 {
		t.Fatalf("boundaries of empty list = %v", got)
	}
}

func TestTimeToNextBoundary(t *testing.T) {
	t.Parallel()

	m := New()
	// 128 beats at 120 BPM: downbeats every 2 s, boundaries every 16 s.
	beats, down := grid(120, 0, 128)
	_ = m.SetBeatGrid(deck.B, beats, down, 120)

	testutil.RequireNear(t, "from 0", m.TimeToNextBoundary(0, deck.B), 16, 1e-9)
	testutil.RequireNear(t, "from 10", m.TimeToNextBoundary(10, deck.B), 6, 1e-9)
	testutil.RequireNear(t, "on boundary", m.TimeToNextBoundary(16, deck.B), 16, 1e-9)
	if got := m.TimeToNextBoundary(48, deck.B); got != -1 {
		t.Fatalf("past last boundary = %v, want -1", got)
	}
	if got := m.TimeToNextBoundary(0, deck.A); got != -1 {
		t.Fatalf("empty deck = %v, want -1", got)
	}
	if b, ok := m.NextBoundary(20, deck.B); !ok || b != 32 {
		t.Fatalf("NextBoundary = %v, %v", b, ok)
	}
}

func TestFindNearestBeat(t *testing.T) {
	t.Parallel()

	beats := []float64{0, 0.5, 1.0, 1.5}
	tests := []struct {
		t    float64
		want int
	}{
		{-1, 0}, {0.2, 0}, {0.3, 1}, {0.75, 1}, {1.4, 3}, {9, 3},
	}
	for _, tt := range tests {
		if got := FindNearestBeat(tt.t, beats); got != tt.want {
			t.Errorf("FindNearestBeat(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
	if FindNearestBeat(1, nil) != -1 {
		t.Fatal("empty grid should return -1")
	}
}

func TestSetBeatGridValidation(t *testing.T) {
	t.Parallel()

	m := New()
	cases := []struct {
		name      string
		beats     []float64
		downbeats []float64
		bpm       float64
	}{
		{"zero bpm", []float64{0, 1}, nil, 0},
		{"nan bpm", []float64{0, 1}, nil, math.NaN()},
		{"decreasing beats", []float64{0, 1, 0.5}, nil, 120},
		{"duplicate beats", []float64{0, 1, 1}, nil, 120},
		{"downbeat off grid", []float64{0, 1, 2}, []float64{0.5}, 120},
		{"unordered downbeats", []float64{0, 1, 2}, []float64{2, 1}, 120},
	}
	for _, c := range cases {
		if err := m.SetBeatGrid(deck.A, c.beats, c.downbeats, c.bpm); !errors.Is(err, ErrInvalidGrid) {
			t.Errorf("%s: err = %v", c.name, err)
		}
	}
	if err := m.SetBeatGrid(deck.Side(7), nil, nil, 120); err == nil {
		t.Fatal("invalid side accepted")
	}
}

func TestGridIsCopied(t *testing.T) {
	t.Parallel()

	m := New()
	beats := []float64{0, 0.5, 1}
	_ = m.SetBeatGrid(deck.A, beats, []float64{0}, 120)
	beats[1] = 99
	if m.Grid(deck.A).Beats[1] != 0.5 {
		t.Fatal("grid aliases the caller's slice")
	}
	if m.NearestBeat(0.6, deck.A) != 1 {
		t.Fatal("NearestBeat")
	}
	m.ClearBeatGrid(deck.A)
	if !m.Grid(deck.A).Empty() || m.BPM(deck.A) != DefaultBPM {
		t.Fatal("ClearBeatGrid")
	}
}

func TestSuggestTransitionPoint(t *testing.T) {
	t.Parallel()

	a := []Section{
		{Intro, 0, 16}, {Chorus, 16, 48}, {Verse, 48, 80}, {Chorus, 80, 112}, {Outro, 112, 140},
	}
	b := []Section{{Intro, 4, 32}, {Chorus, 32, 64}}

	p, ok := SuggestTransitionPoint(a, b, 50)
	if !ok || p.FadeOutStart != 112 || p.FadeInStart != 4 {
		t.Fatalf("outro pairing = %+v, %v", p, ok)
	}

	p, ok = SuggestTransitionPoint(a[:4], b, 50)
	if !ok || p.FadeOutStart != 112 || p.FadeInStart != 4 {
		t.Fatalf("last chorus pairing = %+v, %v", p, ok)
	}

	if _, ok := SuggestTransitionPoint(a, b[1:], 0); ok {
		t.Fatal("no intro in B should give no suggestion")
	}
	if _, ok := SuggestTransitionPoint(a[2:3], b, 0); ok {
		t.Fatal("no outro or chorus in A should give no suggestion")
	}
}

func TestValidateSections(t *testing.T) {
	t.Parallel()

	if err := ValidateSections([]Section{{Intro, 0, 10}, {Verse, 10, 20}}); err != nil {
		t.Fatal(err)
	}
	if err := ValidateSections([]Section{{Intro, 5, 5}}); err == nil {
		t.Fatal("empty section accepted")
	}
	if err := ValidateSections([]Section{{Intro, 0, 10}, {Verse, 9, 20}}); err == nil {
		t.Fatal("overlap accepted")
	}
	if n, err := ParseSectionName("chorus"); err != nil || n != Chorus {
		t.Fatalf("ParseSectionName = %v, %v", n, err)
	}
}
