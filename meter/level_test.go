package meter

import (
	"errors"
	"math"
	"testing"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/internal/testutil"
)

func TestLevelSilence(t *testing.T) {
	m := NewLevel(0)
	m.Update(make([]float64, 64), make([]float64, 64))
	if !math.IsInf(m.DB(), -1) || !math.IsInf(m.PeakDB(), -1) {
		t.Fatalf("silence should read -Inf, got %v %v", m.DB(), m.PeakDB())
	}
}

func TestLevelConvergesToRMS(t *testing.T) {
	m := NewLevel(0.5)
	s := testutil.Sine(1000, 48000, 1, 480)
	for range 60 {
		m.Update(s, s)
	}
	testutil.RequireNear(t, "rms", m.RMS(), 1/math.Sqrt2, 1e-3)
	testutil.RequireNear(t, "peak", m.Peak(), 1, 1e-3)
	testutil.RequireNear(t, "dB", m.DB(), -3.01, 0.02)
}

func TestSpectrumFindsTone(t *testing.T) {
	const sr = 48000
	s, err := NewSpectrum(2048, sr)
	if err != nil {
		t.Fatalf("NewSpectrum: %v", err)
	}
	s.Write(testutil.Sine(1000, sr, 0.5, 4096))
	bands, err := s.Bands(16)
	if err != nil {
		t.Fatalf("Bands: %v", err)
	}
	best := 0
	for i, v := range bands {
		if v > bands[best] {
			best = i
		}
	}
	lo := 20 * math.Pow(sr/2/20.0, float64(best)/16)
	hi := 20 * math.Pow(sr/2/20.0, float64(best+1)/16)
	if 1000 < lo*0.9 || 1000 > hi*1.1 {
		t.Fatalf("loudest band %d covers %.0f-%.0f Hz, want 1 kHz", best, lo, hi)
	}
	testutil.RequireNear(t, "tone level", bands[best], 20*math.Log10(0.5), 1.5)
}

func TestSpectrumRejectsSize(t *testing.T) {
	if _, err := NewSpectrum(1000, 48000); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
}
