package deck

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/internal/testutil"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/sched"
)

const sr = 48000

type bpmResult float64

func (b bpmResult) InitialBPM() float64 { return float64(b) }

// silence decodes every source as the given number of seconds of silence.
func silence(seconds float64) DecoderFunc {
	return func(context.Context, string) (*graph.Buffer, error) {
		return graph.NewBuffer(sr, make([]float64, int(seconds*sr)), nil)
	}
}

func fixedBPM(bpm float64) AnalyzerFunc {
	return func(context.Context, string) (Analysis, error) { return bpmResult(bpm), nil }
}

type rig struct {
	ctx   *graph.Context
	sched *sched.Scheduler
	deck  *Deck
}

func newRig(t *testing.T, seconds float64, opts ...Option) *rig {
	t.Helper()
	ctx := graph.NewContext(core.WithSampleRate(sr))
	s := sched.New(ctx)
	opts = append([]Option{WithDecoder(silence(seconds)), WithAnalyzer(fixedBPM(128))}, opts...)
	d := New(A, ctx, s, opts...)
	if err := d.Output().Connect(ctx.Destination()); err != nil {
		t.Fatal(err)
	}
	return &rig{ctx: ctx, sched: s, deck: d}
}

func (r *rig) load(t *testing.T) {
	t.Helper()
	if err := r.deck.Load(context.Background(), "track.wav"); err != nil {
		t.Fatal(err)
	}
}

// run renders seconds of audio in 60 Hz frames, ticking after each.
func (r *rig) run(seconds float64) {
	const frame = sr / 60
	l := make([]float64, frame)
	rr := make([]float64, frame)
	for n := int(seconds * 60); n > 0; n-- {
		r.ctx.Render(l, rr)
		r.sched.Tick()
	}
}

func TestLoadSetsState(t *testing.T) {
	t.Parallel()

	var info LoadInfo
	r := newRig(t, 10, WithCallbacks(Callbacks{OnLoaded: func(_ Side, i LoadInfo) { info = i }}))
	r.load(t)

	st := r.deck.State()
	if !st.IsLoaded || st.Duration != 10 || st.BPM != 128 || st.OriginalBPM != 128 {
		t.Fatalf("state = %+v", st)
	}
	if st.Volume != DefaultVolume {
		t.Fatalf("volume = %v", st.Volume)
	}
	if info.BPM != 128 || info.Duration != 10 || info.Source != "track.wav" {
		t.Fatalf("OnLoaded got %+v", info)
	}
	cues := r.deck.HotCues()
	for i, c := range cues {
		if c.Index != i+1 || c.Color != HotCueColors[i] || c.Set {
			t.Fatalf("cue %d = %+v", i, c)
		}
	}
	if r.deck.Loop().Bars != 4 {
		t.Fatal("default loop bars")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	decodeErr := errors.New("corrupt file")
	ctx := graph.NewContext()
	d := New(B, ctx, sched.New(ctx), WithDecoder(DecoderFunc(func(context.Context, string) (*graph.Buffer, error) {
		return nil, decodeErr
	})))
	err := d.Load(context.Background(), "bad.mp3")
	var le *LoadError
	if !errors.As(err, &le) || le.Op != "decode" || !errors.Is(err, decodeErr) {
		t.Fatalf("decode failure = %v", err)
	}

	analysisErr := errors.New("service down")
	d = New(B, ctx, sched.New(ctx), WithDecoder(silence(1)), WithAnalyzer(AnalyzerFunc(func(context.Context, string) (Analysis, error) {
		return nil, analysisErr
	})))
	err = d.Load(context.Background(), "ok.wav")
	if !errors.As(err, &le) || le.Op != "analyze" || !errors.Is(err, analysisErr) {
		t.Fatalf("analysis failure = %v", err)
	}
	if d.State().IsLoaded {
		t.Fatal("failed analysis left the deck loaded")
	}

	d = New(B, ctx, sched.New(ctx))
	if err := d.Load(context.Background(), "x"); !errors.Is(err, ErrNoDecoder) {
		t.Fatalf("missing decoder = %v", err)
	}
}

func TestConcurrentLoadSupersedes(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	ctx := graph.NewContext(core.WithSampleRate(sr))
	dec := DecoderFunc(func(_ context.Context, src string) (*graph.Buffer, error) {
		if src == "slow.wav" {
			close(started)
			<-release
		}
		return graph.NewBuffer(sr, make([]float64, sr), nil)
	})
	d := New(A, ctx, sched.New(ctx), WithDecoder(dec))

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowErr = d.Load(context.Background(), "slow.wav")
	}()
	<-started
	if err := d.Load(context.Background(), "fast.wav"); err != nil {
		t.Fatal(err)
	}
	close(release)
	wg.Wait()

	if !errors.Is(slowErr, ErrLoadSuperseded) {
		t.Fatalf("slow load = %v, want ErrLoadSuperseded", slowErr)
	}
	if d.State().Source != "fast.wav" {
		t.Fatalf("source = %q", d.State().Source)
	}
	if got := d.Output().NumInputs(); got != 1 {
		t.Fatalf("channel has %d players connected, want 1", got)
	}
}

func TestReloadDisposesPriorPlayer(t *testing.T) {
	t.Parallel()

	r := newRig(t, 5)
	r.load(t)
	r.deck.Play()
	first := r.deck.Task()
	r.load(t)
	if first.Active() {
		t.Fatal("reload left the frame task running")
	}
	if r.deck.Output().NumInputs() != 1 {
		t.Fatalf("channel inputs = %d", r.deck.Output().NumInputs())
	}
	if r.deck.State().IsPlaying {
		t.Fatal("new track should start stopped")
	}
}

func TestPitchKeepsBPMInvariant(t *testing.T) {
	t.Parallel()

	r := newRig(t, 5)
	r.load(t)
	for p := -10.0; p <= 10; p += 0.37 {
		r.deck.SetPitch(p)
		st := r.deck.State()
		cp := math.Max(-8, math.Min(8, p))
		want := math.Round(128*(1+cp/100)*10) / 10
		if st.PitchPercent != cp || st.BPM != want {
			t.Fatalf("pitch %v: state pitch %v bpm %v, want %v", p, st.PitchPercent, st.BPM, want)
		}
	}
	r.deck.SetPitch(8)
	testutil.RequireNear(t, "rate", r.deck.player.PlaybackRate.Value(), 1.08, 1e-12)
}

func TestPlayAdvancesAndPauseCancels(t *testing.T) {
	t.Parallel()

	r := newRig(t, 10)
	r.load(t)
	r.deck.Play()
	if r.sched.Len() != 1 {
		t.Fatalf("scheduler has %d tasks", r.sched.Len())
	}
	r.run(1)
	testutil.RequireNear(t, "position", r.deck.CurrentTime(), 1, 1e-9)

	task := r.deck.Task()
	r.deck.Pause()
	if task.Active() || r.sched.Len() != 0 || r.deck.Task() != nil {
		t.Fatal("pause left the frame task active")
	}
	st := r.deck.State()
	if st.IsPlaying || !st.IsPaused {
		t.Fatalf("state after pause = %+v", st)
	}
	pos := st.CurrentTime
	r.run(0.5)
	if r.deck.CurrentTime() != pos {
		t.Fatal("position moved while paused")
	}

	r.deck.PlayPause()
	r.run(0.5)
	testutil.RequireNear(t, "resumed", r.deck.CurrentTime(), pos+0.5, 1e-9)

	task = r.deck.Task()
	r.deck.Stop()
	if task.Active() || r.deck.CurrentTime() != 0 {
		t.Fatal("stop should cancel the task and rewind")
	}
}

func TestPitchedPlayback(t *testing.T) {
	t.Parallel()

	r := newRig(t, 10)
	r.load(t)
	r.deck.SetPitch(5)
	r.deck.Play()
	r.run(1)
	testutil.RequireNear(t, "position", r.deck.CurrentTime(), 1.05, 1e-9)

	r.deck.SetPitch(-5)
	r.run(1)
	testutil.RequireNear(t, "position after change", r.deck.CurrentTime(), 2.0, 1e-9)
}

func TestEndedStopsDeck(t *testing.T) {
	t.Parallel()

	ended := 0
	r := newRig(t, 0.5, WithCallbacks(Callbacks{OnEnded: func(Side) { ended++ }}))
	r.load(t)
	r.deck.Play()
	r.run(1)
	if ended != 1 {
		t.Fatalf("OnEnded fired %d times", ended)
	}
	st := r.deck.State()
	if st.IsPlaying || st.CurrentTime != 0 || r.sched.Len() != 0 {
		t.Fatalf("state after end = %+v", st)
	}
}

func TestLoopResetsToStart(t *testing.T) {
	t.Parallel()

	var times []float64
	r := newRig(t, 10, WithCallbacks(Callbacks{OnTimeUpdate: func(_ Side, t float64) { times = append(times, t) }}))
	r.load(t)
	r.deck.Seek(1)
	r.deck.SetLoopIn()
	r.deck.Seek(1.5)
	r.deck.SetLoopOut()
	lp := r.deck.Loop()
	if !lp.IsActive || lp.Start != 1 || lp.End != 1.5 {
		t.Fatalf("loop = %+v", lp)
	}

	r.deck.Seek(1.4)
	r.deck.Play()
	r.run(0.5)

	sawReset := false
	for _, v := range times {
		if v > 1.5 {
			t.Fatalf("position %v overshot the loop end", v)
		}
		if v == 1 {
			sawReset = true
		}
	}
	if !sawReset {
		t.Fatalf("loop never reset to its start: %v", times)
	}
}

func TestLoopOperations(t *testing.T) {
	t.Parallel()

	r := newRig(t, 30)
	r.load(t)

	r.deck.Seek(2)
	r.deck.SetLoopOut()
	if r.deck.Loop().IsActive {
		t.Fatal("loop out without loop in activated")
	}

	r.deck.SetAutoLoop(4) // 4 bars at 128 BPM
	lp := r.deck.Loop()
	testutil.RequireNear(t, "auto end", lp.End, 2+16*60.0/128, 1e-12)
	if !lp.IsActive || lp.Bars != 4 {
		t.Fatalf("auto loop = %+v", lp)
	}

	r.deck.LoopHalve()
	testutil.RequireNear(t, "halved", r.deck.Loop().End, 2+8*60.0/128, 1e-12)
	r.deck.LoopDouble()
	r.deck.LoopDouble()
	lp = r.deck.Loop()
	testutil.RequireNear(t, "doubled", lp.End, 2+32*60.0/128, 1e-12)
	if lp.Bars != 8 {
		t.Fatalf("bars = %v", lp.Bars)
	}

	r.deck.ToggleLoop()
	if r.deck.Loop().IsActive {
		t.Fatal("toggle did not deactivate")
	}
	r.deck.ToggleLoop()
	if !r.deck.Loop().IsActive {
		t.Fatal("toggle did not reactivate")
	}

	r.deck.ClearLoop()
	r.deck.ToggleLoop()
	if lp := r.deck.Loop(); lp.IsActive || lp.HasStart || lp.Bars != 4 {
		t.Fatalf("cleared loop = %+v", lp)
	}

	r.deck.Seek(5)
	r.deck.SetLoopIn()
	r.deck.Seek(4)
	r.deck.SetLoopOut()
	if r.deck.Loop().IsActive {
		t.Fatal("loop out before loop in activated")
	}
}

func TestHotCueRoundTrip(t *testing.T) {
	t.Parallel()

	r := newRig(t, 30)
	r.load(t)
	r.deck.Seek(12.5)
	r.deck.SetHotCue(3)
	r.deck.Seek(0)
	r.deck.JumpToHotCue(3)
	if got := r.deck.CurrentTime(); got != 12.5 {
		t.Fatalf("jump landed at %v", got)
	}

	r.deck.ClearHotCue(3)
	r.deck.Seek(4)
	r.deck.JumpToHotCue(3)
	if got := r.deck.CurrentTime(); got != 4 {
		t.Fatalf("jump to cleared cue moved to %v", got)
	}

	r.deck.SetHotCue(0)
	r.deck.SetHotCue(6)
	for _, c := range r.deck.HotCues() {
		if c.Set {
			t.Fatalf("out-of-range index stored cue %+v", c)
		}
	}
}

func TestCueReturnsAndPauses(t *testing.T) {
	t.Parallel()

	r := newRig(t, 30)
	r.load(t)
	r.deck.Seek(2)
	r.deck.Cue()
	if r.deck.CuePoint() != 2 {
		t.Fatalf("cue point = %v", r.deck.CuePoint())
	}
	r.deck.Play()
	r.run(1)
	task := r.deck.Task()
	r.deck.Cue()
	st := r.deck.State()
	if st.IsPlaying || !st.IsPaused || st.CurrentTime != 2 {
		t.Fatalf("state after cue = %+v", st)
	}
	if task.Active() {
		t.Fatal("frame task survived cue")
	}
	if r.deck.CuePoint() != 2 {
		t.Fatal("returning to cue moved the cue point")
	}
}

func TestSeekClampsAndBeatJump(t *testing.T) {
	t.Parallel()

	r := newRig(t, 10)
	r.load(t)
	r.deck.Seek(-3)
	if r.deck.CurrentTime() != 0 {
		t.Fatal("negative seek not clamped")
	}
	r.deck.Seek(99)
	if r.deck.CurrentTime() != 10 {
		t.Fatal("seek past end not clamped")
	}
	r.deck.Seek(1)
	r.deck.BeatJump(4)
	testutil.RequireNear(t, "beat jump", r.deck.CurrentTime(), 1+4*60.0/128, 1e-12)
	r.deck.BeatJump(-100)
	if r.deck.CurrentTime() != 0 {
		t.Fatal("beat jump not clamped")
	}
}

func TestSeekWhilePlayingKeepsTask(t *testing.T) {
	t.Parallel()

	r := newRig(t, 10)
	r.load(t)
	r.deck.Play()
	r.run(0.5)
	task := r.deck.Task()
	r.deck.Seek(5)
	if !task.Active() || !r.deck.State().IsPlaying {
		t.Fatal("seek interrupted playback")
	}
	r.run(0.5)
	testutil.RequireNear(t, "after seek", r.deck.CurrentTime(), 5.5, 1e-9)
}

func TestVolumeAndMute(t *testing.T) {
	t.Parallel()

	r := newRig(t, 5)
	r.load(t)
	r.deck.ToggleMute()
	if !r.deck.State().IsMuted || !r.deck.Output().Muted() {
		t.Fatal("mute not applied")
	}
	r.deck.SetVolume(1.7)
	st := r.deck.State()
	if st.Volume != 1 || st.IsMuted || r.deck.Output().Muted() {
		t.Fatalf("SetVolume state = %+v", st)
	}
	testutil.RequireNear(t, "channel dB", r.deck.Output().Volume.Value(), 0, 1e-12)
	r.deck.SetVolume(0)
	if !math.IsInf(r.deck.Output().Volume.Value(), -1) {
		t.Fatal("zero volume should be -Inf dB")
	}
}

func TestUnloadedDeckIgnoresOperations(t *testing.T) {
	t.Parallel()

	r := newRig(t, 5)
	d := r.deck
	d.Play()
	d.Seek(3)
	d.SetPitch(4)
	d.SetVolume(0.2)
	d.ToggleMute()
	d.SetHotCue(1)
	d.SetAutoLoop(4)
	d.BeatJump(8)
	d.SetStemSource("vocals", "v.wav")
	if err := d.UseStem(context.Background(), "vocals"); err != nil {
		t.Fatal(err)
	}

	st := d.State()
	if st.IsPlaying || st.CurrentTime != 0 || st.PitchPercent != 0 || st.Volume != DefaultVolume || st.IsMuted {
		t.Fatalf("unloaded deck changed: %+v", st)
	}
	if r.sched.Len() != 0 || d.Loop().IsActive || len(d.StemSources()) != 0 {
		t.Fatal("unloaded deck scheduled work")
	}
}

func TestUnloadAndDispose(t *testing.T) {
	t.Parallel()

	r := newRig(t, 5)
	r.load(t)
	r.deck.SetVolume(0.3)
	r.deck.Play()
	task := r.deck.Task()
	r.deck.Unload()
	if task.Active() {
		t.Fatal("unload left the frame task running")
	}
	st := r.deck.State()
	if st.IsLoaded || st.Volume != DefaultVolume {
		t.Fatalf("state after unload = %+v", st)
	}

	r.load(t)
	r.deck.Play()
	task = r.deck.Task()
	r.deck.Dispose()
	if task.Active() || !r.deck.Output().Disposed() {
		t.Fatal("dispose left resources alive")
	}
	if err := r.deck.Load(context.Background(), "again.wav"); !errors.Is(err, graph.ErrDisposed) {
		t.Fatalf("load after dispose = %v", err)
	}
}

func TestUseStem(t *testing.T) {
	t.Parallel()

	r := newRig(t, 10)
	r.load(t)
	r.deck.SetStemSource("drums", "drums.wav")
	if err := r.deck.UseStem(context.Background(), "bass"); err == nil {
		t.Fatal("unknown stem accepted")
	}
	r.deck.Play()
	r.run(1)
	if err := r.deck.UseStem(context.Background(), "drums"); err != nil {
		t.Fatal(err)
	}
	if r.deck.Output().NumInputs() != 1 {
		t.Fatalf("channel inputs = %d", r.deck.Output().NumInputs())
	}
	r.run(1)
	testutil.RequireNear(t, "position", r.deck.CurrentTime(), 2, 1e-9)
	if got := r.deck.StemSources(); got["drums"] != "drums.wav" {
		t.Fatalf("stems = %v", got)
	}
}

func TestParseSide(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Side{"a": A, "B": B, " b ": B} {
		got, err := ParseSide(in)
		if err != nil || got != want {
			t.Errorf("ParseSide(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseSide("c"); err == nil {
		t.Fatal("ParseSide accepted c")
	}
	if A.Other() != B || B.Other() != A || A.String() != "A" {
		t.Fatal("Other/String")
	}
}
