package graph

import (
	"errors"
	"math"
	"testing"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/biquad"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/shaper"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/internal/testutil"
)

func TestConnectErrors(t *testing.T) {
	ctx := NewContext()
	a := NewGain(ctx, 1)
	b := NewGain(ctx, 1)
	c := NewGain(ctx, 1)
	mustConnect(t, a, b)
	mustConnect(t, b, c)

	if err := c.Connect(a); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if err := a.Connect(a); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle for self loop, got %v", err)
	}

	buf, _ := NewBuffer(48000, []float64{0, 1}, nil)
	p := NewPlayer(ctx, buf)
	if err := a.Connect(p); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}

	other := NewGain(NewContext(), 1)
	if err := a.Connect(other); !errors.Is(err, ErrForeignNode) {
		t.Fatalf("expected ErrForeignNode, got %v", err)
	}

	c.Dispose()
	if err := b.Connect(c); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
	if b.NumOutputs() != 0 {
		t.Fatalf("dispose left %d edges on upstream node", b.NumOutputs())
	}
}

func TestConnectIsIdempotentAndDisconnect(t *testing.T) {
	ctx := NewContext()
	a := NewGain(ctx, 1)
	b := NewGain(ctx, 1)
	mustConnect(t, a, b)
	mustConnect(t, a, b)
	if a.NumOutputs() != 1 || b.NumInputs() != 1 {
		t.Fatalf("edges = %d/%d, want 1/1", a.NumOutputs(), b.NumInputs())
	}
	if !a.IsConnectedTo(b) {
		t.Fatal("expected edge a->b")
	}
	a.Disconnect(b)
	if a.NumOutputs() != 0 || b.NumInputs() != 0 {
		t.Fatal("Disconnect left edges behind")
	}
	mustConnect(t, a, b)
	a.DisconnectAll()
	if b.NumInputs() != 0 {
		t.Fatal("DisconnectAll left edges behind")
	}
}

func renderDC(t *testing.T, ctx *Context, build func(src Node) Node, frames int) (l, r []float64) {
	t.Helper()
	buf, err := NewBuffer(ctx.SampleRate(), testutil.DC(1, frames+ctx.BlockSize()), nil)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	p := NewPlayer(ctx, buf)
	out := build(p)
	mustConnect(t, out, ctx.Destination())
	if err := p.Start(ctx.Now(), 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l = make([]float64, frames)
	r = make([]float64, frames)
	ctx.Render(l, r)
	return l, r
}

func TestCrossFadeEqualPower(t *testing.T) {
	tests := []struct {
		fade  float64
		wantA float64
		wantB float64
	}{
		{fade: 0, wantA: 1, wantB: 0},
		{fade: 0.5, wantA: math.Sqrt2 / 2, wantB: math.Sqrt2 / 2},
		{fade: 1, wantA: 0, wantB: 1},
	}
	for _, tt := range tests {
		ctx := NewContext(core.WithBlockSize(32))
		cf := NewCrossFade(ctx, tt.fade)
		l, _ := renderDC(t, ctx, func(src Node) Node {
			mustConnect(t, src, cf.A())
			return cf
		}, 64)
		testutil.RequireNear(t, "A gain", l[10], tt.wantA, 1e-9)

		ctx = NewContext(core.WithBlockSize(32))
		cf = NewCrossFade(ctx, tt.fade)
		l, _ = renderDC(t, ctx, func(src Node) Node {
			mustConnect(t, src, cf.B())
			return cf
		}, 64)
		testutil.RequireNear(t, "B gain", l[10], tt.wantB, 1e-9)
	}
}

func TestCrossFadeRejectsDirectInputAndDisposesInputs(t *testing.T) {
	ctx := NewContext()
	cf := NewCrossFade(ctx, 0.5)
	g := NewGain(ctx, 1)
	if err := g.Connect(cf); !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	if err := cf.Connect(cf.A()); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	mustConnect(t, g, cf.A())
	cf.Dispose()
	if g.NumOutputs() != 0 || !cf.A().Disposed() {
		t.Fatal("crossfade dispose did not release its inputs")
	}
}

func TestChannelMuteAndVolume(t *testing.T) {
	ctx := NewContext()
	ch := NewChannel(ctx, -6, 0)
	l, r := renderDC(t, ctx, func(src Node) Node {
		mustConnect(t, src, ch)
		return ch
	}, 128)
	testutil.RequireNear(t, "left", l[50], core.DBToGain(-6), 1e-9)
	testutil.RequireNear(t, "right", r[50], core.DBToGain(-6), 1e-9)

	ch.SetMute(true)
	l = make([]float64, 128)
	ctx.Render(l, make([]float64, 128))
	if testutil.Peak(l) != 0 {
		t.Fatal("muted channel produced output")
	}
	ch.SetMute(false)
	ch.Volume.SetValue(math.Inf(-1))
	ctx.Render(l, make([]float64, 128))
	if testutil.Peak(l) != 0 {
		t.Fatal("-Inf dB channel produced output")
	}
}

func TestPannerHardLeft(t *testing.T) {
	ctx := NewContext()
	p := NewPanner(ctx, -1)
	l, r := renderDC(t, ctx, func(src Node) Node {
		mustConnect(t, src, p)
		return p
	}, 64)
	testutil.RequireNear(t, "left", l[5], 2, 1e-9)
	testutil.RequireNear(t, "right", r[5], 0, 1e-9)
}

func TestPlayerSeekWithoutGap(t *testing.T) {
	ctx := NewContext(core.WithSampleRate(1000), core.WithBlockSize(16))
	data := testutil.Ramp(1, 1000)
	buf, _ := NewBuffer(1000, data, nil)
	p := NewPlayer(ctx, buf)
	mustConnect(t, p, ctx.Destination())
	_ = p.Start(0, 0)

	l := make([]float64, 32)
	ctx.Render(l, make([]float64, 32))
	if l[31] != 31 {
		t.Fatalf("l[31] = %v, want 31", l[31])
	}

	now := ctx.Now()
	p.Stop(now)
	_ = p.Start(now, 0.5)
	ctx.Render(l, make([]float64, 32))
	if l[0] != 500 || l[31] != 531 {
		t.Fatalf("after seek got %v..%v, want 500..531", l[0], l[31])
	}
	if !p.Playing() {
		t.Fatal("player should still be playing")
	}

	p.Stop(ctx.Now())
	ctx.Render(l, make([]float64, 32))
	if p.Playing() || testutil.Peak(l) != 0 {
		t.Fatal("player kept playing after Stop")
	}
}

func TestPlayerPlaybackRate(t *testing.T) {
	ctx := NewContext(core.WithSampleRate(1000), core.WithBlockSize(16))
	buf, _ := NewBuffer(1000, testutil.Ramp(1, 1000), nil)
	p := NewPlayer(ctx, buf)
	mustConnect(t, p, ctx.Destination())
	p.PlaybackRate.SetValue(1.5)
	_ = p.Start(0, 0)
	l := make([]float64, 10)
	ctx.Render(l, make([]float64, 10))
	testutil.RequireNear(t, "sample 4", l[4], 6, 1e-12)
	testutil.RequireNear(t, "sample 5", l[5], 7.5, 1e-12)
	testutil.RequireNear(t, "position", p.Position(), 0.015, 1e-12)
}

func TestFilterAttenuatesAboveCutoff(t *testing.T) {
	const sr = 48000
	ctx := NewContext()
	f := NewFilter(ctx, biquad.Lowpass, 200, -24)
	buf, _ := NewBuffer(sr, testutil.Sine(5000, sr, 1, sr), nil)
	p := NewPlayer(ctx, buf)
	mustConnect(t, p, f)
	mustConnect(t, f, ctx.Destination())
	_ = p.Start(0, 0)
	l := make([]float64, 4800)
	ctx.Render(l, make([]float64, 4800))
	if peak := testutil.Peak(l[2400:]); peak > 0.001 {
		t.Fatalf("5 kHz leaked through 200 Hz lowpass: %v", peak)
	}

	f.SetType(biquad.Highpass)
	ctx.Render(l, make([]float64, 4800))
	if peak := testutil.Peak(l[2400:]); peak < 0.9 {
		t.Fatalf("highpass attenuated 5 kHz: %v", peak)
	}
}

func TestEQ3KillsLowBand(t *testing.T) {
	const sr = 48000
	run := func(low float64, freq float64) float64 {
		ctx := NewContext()
		eq := NewEQ3(ctx, 200, 2000)
		eq.Low.SetValue(low)
		buf, _ := NewBuffer(sr, testutil.Sine(freq, sr, 1, sr), nil)
		p := NewPlayer(ctx, buf)
		mustConnect(t, p, eq)
		mustConnect(t, eq, ctx.Destination())
		_ = p.Start(0, 0)
		l := make([]float64, 9600)
		ctx.Render(l, make([]float64, 9600))
		return testutil.Peak(l[4800:])
	}
	if got := run(math.Inf(-1), 40); got > 0.05 {
		t.Fatalf("killed low band still passes 40 Hz at %v", got)
	}
	if got := run(math.Inf(-1), 8000); got < 0.8 {
		t.Fatalf("killing the low band removed 8 kHz: %v", got)
	}
	if got := run(0, 40); got < 0.8 {
		t.Fatalf("flat EQ attenuated 40 Hz: %v", got)
	}
}

func TestFeedbackDelayEcho(t *testing.T) {
	const sr = 1000
	ctx := NewContext(core.WithSampleRate(sr), core.WithBlockSize(16))
	d := NewFeedbackDelay(ctx, 0.01, 0.5)
	d.Wet.SetValue(1)
	data := make([]float64, 100)
	data[0] = 1
	buf, _ := NewBuffer(sr, data, nil)
	p := NewPlayer(ctx, buf)
	mustConnect(t, p, d)
	mustConnect(t, d, ctx.Destination())
	_ = p.Start(0, 0)
	l := make([]float64, 40)
	ctx.Render(l, make([]float64, 40))
	testutil.RequireNear(t, "first echo", l[10], 1, 1e-9)
	testutil.RequireNear(t, "second echo", l[20], 0.5, 1e-9)
	testutil.RequireNear(t, "dry removed", l[0], 0, 1e-12)
}

func TestWaveShaperCurve(t *testing.T) {
	ctx := NewContext()
	w := NewWaveShaper(ctx, []float64{-1, 0, 0.25})
	l, _ := renderDC(t, ctx, func(src Node) Node {
		mustConnect(t, src, w)
		return w
	}, 32)
	testutil.RequireNear(t, "shaped", l[3], 0.25, 1e-12)

	w.SetCurve(nil)
	ctx.Render(l, make([]float64, 32))
	testutil.RequireNear(t, "passthrough", l[3], 1, 1e-12)
}

func TestWaveShaperSilenceStaysSilent(t *testing.T) {
	t.Parallel()

	curves := map[string][]float64{
		"tape":    shaper.SaturationCurve(shaper.Tape, 0.5),
		"console": shaper.SaturationCurve(shaper.Console, 1),
		"tube":    shaper.TubeCurve(0.7),
	}
	for name, c := range curves {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := lookup(c, 0); got != 0 {
				t.Fatalf("lookup(0) = %v, want 0", got)
			}
			testutil.RequireNear(t, "midpoint", lookup(c, 0.25), c[shaper.Size*5/8], 1e-12)

			ctx := NewContext()
			w := NewWaveShaper(ctx, c)
			mustConnect(t, w, ctx.Destination())
			l := make([]float64, 64)
			r := make([]float64, 64)
			ctx.Render(l, r)
			if p := max(testutil.Peak(l), testutil.Peak(r)); p != 0 {
				t.Fatalf("silent input produced peak %v", p)
			}
		})
	}
}

func TestMeterReadsLevel(t *testing.T) {
	ctx := NewContext()
	m := NewMeter(ctx, 0)
	renderDC(t, ctx, func(src Node) Node {
		mustConnect(t, src, m)
		return m
	}, 512)
	testutil.RequireNear(t, "level", m.Level(), 0, 1e-9)
	testutil.RequireNear(t, "peak", m.Peak(), 0, 1e-9)
}

func TestDisposedNodeRendersSilence(t *testing.T) {
	ctx := NewContext()
	g := NewGain(ctx, 1)
	l, _ := renderDC(t, ctx, func(src Node) Node {
		mustConnect(t, src, g)
		return g
	}, 32)
	if l[0] != 1 {
		t.Fatalf("l[0] = %v, want 1", l[0])
	}
	g.Dispose()
	ctx.Render(l, make([]float64, 32))
	if testutil.Peak(l) != 0 {
		t.Fatal("disposed node still audible")
	}
}

func TestReverbProducesTail(t *testing.T) {
	ctx := NewContext()
	rv := NewReverb(ctx, 0.5)
	rv.Wet.SetValue(1)
	data := make([]float64, 256)
	data[0] = 1
	buf, _ := NewBuffer(ctx.SampleRate(), data, nil)
	p := NewPlayer(ctx, buf)
	mustConnect(t, p, rv)
	mustConnect(t, rv, ctx.Destination())
	_ = p.Start(0, 0)
	l := make([]float64, 8192)
	ctx.Render(l, make([]float64, 8192))
	testutil.RequireFinite(t, l)
	if testutil.Peak(l[:reverbPartition]) != 0 {
		t.Fatal("wet signal arrived before the convolution latency")
	}
	if testutil.Peak(l[reverbPartition:]) == 0 {
		t.Fatal("no reverb tail")
	}
	testutil.RequireNear(t, "decay", rv.Decay(), 0.5, 1e-12)
}
