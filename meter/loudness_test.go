package meter

import (
	"math"
	"testing"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/internal/testutil"
)

func TestLoudnessStereoSine(t *testing.T) {
	t.Parallel()

	const sr = 48000
	m := NewLoudness(sr)
	s := testutil.Sine(1000, sr, 1, 4*sr)
	m.Write(s, s)

	// A full-scale 1 kHz sine reads -3.03 LUFS per channel after
	// K-weighting, so two identical channels read about 0 LUFS.
	testutil.RequireNear(t, "momentary", m.Momentary(), -0.02, 0.05)
	testutil.RequireNear(t, "short-term", m.ShortTerm(), -0.02, 0.05)
	// The first blocks fill the momentary window.
	tone := m.Integrated()
	testutil.RequireNear(t, "integrated", tone, -0.19, 0.05)
	testutil.RequireNear(t, "peak", m.PeakDB(), 0, 1e-3)

	// Silence is gated out of the programme loudness.
	quiet := make([]float64, 4*sr)
	m.Write(quiet, quiet)
	if got := m.Integrated(); math.Abs(got-tone) > 0.25 {
		t.Fatalf("integrated moved from %v to %v over silence", tone, got)
	}
	if m.Momentary() > -60 {
		t.Fatalf("momentary over silence = %v", m.Momentary())
	}
}

func TestLoudnessReset(t *testing.T) {
	t.Parallel()

	m := NewLoudness(44100)
	s := testutil.Sine(440, 44100, 0.5, 44100)
	m.Write(s, s)
	m.Reset()
	if m.Integrated() != LUFSFloor || !math.IsInf(m.PeakDB(), -1) {
		t.Fatalf("after reset: integrated %v, peak %v", m.Integrated(), m.PeakDB())
	}
}
