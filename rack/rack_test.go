package rack

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/internal/testutil"
)

func gainFactory(ctx *graph.Context, o Options) (graph.Node, error) {
	return graph.NewGain(ctx, o.GetNum("gain", 1)), nil
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	t.Run("registers and looks up factory", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		if err := r.Register("gain", gainFactory); err != nil {
			t.Fatalf("Register returned unexpected error: %v", err)
		}
		if r.Lookup("gain") == nil {
			t.Fatal("Lookup returned nil for registered type")
		}
		if r.Lookup("missing") != nil {
			t.Fatal("Lookup returned a factory for an unknown type")
		}
	})

	t.Run("rejects empty effect type", func(t *testing.T) {
		t.Parallel()
		if err := NewRegistry().Register("", gainFactory); err == nil {
			t.Fatal("expected error for empty effect type")
		}
	})

	t.Run("rejects nil factory", func(t *testing.T) {
		t.Parallel()
		if err := NewRegistry().Register("gain", nil); err == nil {
			t.Fatal("expected error for nil factory")
		}
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		_ = r.Register("gain", gainFactory)
		if err := r.Register("gain", gainFactory); !errors.Is(err, errDuplicateEffect) {
			t.Fatalf("expected duplicate error, got %v", err)
		}
	})

	t.Run("MustRegister panics on duplicate", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		r.MustRegister("gain", gainFactory)
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		r.MustRegister("gain", gainFactory)
	})
}

func TestDefaultRegistryBuildsEveryType(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	ctx := graph.NewContext()
	for _, typ := range r.Types() {
		n, err := r.Lookup(typ)(ctx, nil)
		if err != nil || n == nil {
			t.Errorf("%s: factory failed with defaults: %v", typ, err)
		}
	}
	for _, typ := range []string{"Tone.Reverb", "Tuna.MoogFilter", "Tone.EQ3", "Tuna.Convolver"} {
		if r.Lookup(typ) == nil {
			t.Errorf("%s not registered", typ)
		}
	}
}

func TestRebuildChainSkipsBypassedAndUnknown(t *testing.T) {
	t.Parallel()

	ctx := graph.NewContext()
	rk := New(ctx, nil)
	nodes := rk.RebuildChain([]Effect{
		{Type: "Tone.FeedbackDelay"},
		{Type: "Tone.Chorus", Bypassed: true},
		{Type: "Tone.PitchShift"},
		{Type: "Tone.Filter", Options: Options{"type": "nonsense"}},
		{Type: "Tuna.Panner", Options: Options{"pan": -0.5}},
	})
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
	if nodes[0].Kind() != "FeedbackDelay" {
		t.Fatalf("first node kind %q", nodes[0].Kind())
	}
	if nodes[1].Kind() != "Panner" {
		t.Fatalf("second node kind %q", nodes[1].Kind())
	}
	for _, n := range nodes {
		if n.(interface{ NumOutputs() int }).NumOutputs() != 0 {
			t.Fatal("RebuildChain wired nodes")
		}
	}
}

func TestRebuildDiscardsPreviousNodes(t *testing.T) {
	t.Parallel()

	ctx := graph.NewContext()
	rk := New(ctx, nil)
	in := graph.NewGain(ctx, 1)
	out := graph.NewGain(ctx, 1)

	first, err := rk.Rebuild([]Effect{EchoPreset, FlangerPreset}, in, out)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || !in.IsConnectedTo(first[0]) {
		t.Fatal("first chain not wired")
	}

	second, err := rk.Rebuild([]Effect{{Type: "Tone.Gain"}}, in, out)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range first {
		if !n.Disposed() {
			t.Fatalf("stale %s not disposed", n.Kind())
		}
	}
	if in.NumOutputs() != 1 || !in.IsConnectedTo(second[0]) {
		t.Fatalf("input has %d outputs after rebuild", in.NumOutputs())
	}
	if out.NumInputs() != 1 {
		t.Fatalf("output has %d inputs after rebuild", out.NumInputs())
	}
	if len(rk.Nodes()) != 1 {
		t.Fatalf("Nodes() = %d", len(rk.Nodes()))
	}

	if _, err := rk.Rebuild(nil, in, out); err != nil {
		t.Fatal(err)
	}
	if !in.IsConnectedTo(out) {
		t.Fatal("empty chain should link in to out")
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	o := Options{"f": 0.5, "i": 3, "s": "2.5", "bad": "x", "b": true, "name": "lowpass"}
	testutil.RequireNear(t, "f", o.GetNum("f", 0), 0.5, 0)
	testutil.RequireNear(t, "i", o.GetNum("i", 0), 3, 0)
	testutil.RequireNear(t, "s", o.GetNum("s", 0), 2.5, 0)
	testutil.RequireNear(t, "bad", o.GetNum("bad", 7), 7, 0)
	testutil.RequireNear(t, "missing", o.GetNum("missing", 9), 9, 0)
	if o.GetInt("i", 0) != 3 || o.GetInt("missing", 5) != 5 {
		t.Fatal("GetInt")
	}
	if !o.GetBool("b", false) || o.GetBool("name", false) {
		t.Fatal("GetBool")
	}
	if o.GetString("name", "") != "lowpass" || o.GetString("f", "def") != "def" {
		t.Fatal("GetString")
	}
	var nilOpts Options
	testutil.RequireNear(t, "nil map", nilOpts.GetNum("x", 4), 4, 0)
}

func TestDelayTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bpm, div, want float64
	}{
		{120, 4, 0.5},
		{120, 8, 0.25},
		{128, 4, 60.0 / 128},
		{120, 2, 1},
		{0, 4, 0},
	}
	for _, tt := range tests {
		testutil.RequireNear(t, "DelayTime", DelayTime(tt.bpm, tt.div), tt.want, 1e-12)
	}

	e := BpmSyncedEcho(120, 8)
	testutil.RequireNear(t, "synced", e.Options.GetNum("delayTime", 0), 0.25, 1e-12)
	testutil.RequireNear(t, "preset untouched", EchoPreset.Options.GetNum("delayTime", 0), 0.25, 0)
	testutil.RequireNear(t, "feedback kept", e.Options.GetNum("feedback", 0), 0.4, 0)
}

func TestChains(t *testing.T) {
	t.Parallel()

	if got := ChainNames(); len(got) != 4 || got[0] != "basic" {
		t.Fatalf("ChainNames() = %v", got)
	}
	lofi := Chains["lofi"]
	testutil.RequireNear(t, "lofi reverb wet", lofi[2].Options.GetNum("wet", 0), 0.5, 0)
	testutil.RequireNear(t, "reverb preset wet", ReverbPreset.Options.GetNum("wet", 0), 0.3, 0)

	ctx := graph.NewContext()
	nodes := New(ctx, nil).RebuildChain(append(Chains["drop"], WahWahPreset))
	if len(nodes) != 2 {
		t.Fatalf("drop chain built %d nodes", len(nodes))
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	data := []byte(`
chain: drop
effects:
  - preset: echo
    options: {wet: 0.6}
  - id: trem
    type: Tone.Tremolo
    bypassed: true
    options:
      frequency: 4
`)
	effects, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(effects) != 4 {
		t.Fatalf("got %d effects", len(effects))
	}
	if effects[2].Type != "Tone.FeedbackDelay" || effects[2].Options.GetNum("wet", 0) != 0.6 {
		t.Fatalf("preset entry = %+v", effects[2])
	}
	if effects[2].Options.GetNum("feedback", 0) != 0.4 {
		t.Fatal("preset options not merged")
	}
	if effects[3].ID != "trem" || !effects[3].Bypassed || effects[3].Options.GetNum("frequency", 0) != 4 {
		t.Fatalf("typed entry = %+v", effects[3])
	}

	for _, bad := range []string{
		"chain: nope\n",
		"effects:\n  - preset: nope\n",
		"effects:\n  - options: {a: 1}\n",
		"unknown: 1\n",
	} {
		if _, err := Parse([]byte(bad)); err == nil {
			t.Errorf("Parse(%q) succeeded", bad)
		}
	}
	if effects, err := Parse(nil); err != nil || len(effects) != 0 {
		t.Fatalf("empty file = %v, %v", effects, err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rack.yaml")
	data, err := Marshal(Chains["basic"])
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	effects, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(effects) != 3 || effects[1].Type != "Tone.Chorus" {
		t.Fatalf("loaded %+v", effects)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
