package core

import (
	"errors"
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		min      float64
		max      float64
		expected float64
	}{
		{name: "inside", value: 0.5, min: 0, max: 1, expected: 0.5},
		{name: "below", value: -1, min: 0, max: 1, expected: 0},
		{name: "above", value: 2, min: 0, max: 1, expected: 1},
		{name: "swapped", value: 2, min: 1, max: 0, expected: 1},
		{name: "nan", value: math.NaN(), min: -8, max: 8, expected: -8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.value, tt.min, tt.max)
			if got != tt.expected {
				t.Fatalf("Clamp() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDBConversions(t *testing.T) {
	if got := GainToDB(DBToGain(-6)); !NearlyEqual(got, -6, 1e-10) {
		t.Fatalf("GainToDB(DBToGain(-6)) = %v, want -6", got)
	}
	if DBToGain(math.Inf(-1)) != 0 {
		t.Fatal("expected -Inf dB to map to zero gain")
	}
	if !math.IsInf(GainToDB(0), -1) {
		t.Fatal("expected -Inf for zero gain")
	}
}

func TestRoundTo(t *testing.T) {
	if got := RoundTo(120*1.033, 1); got != 124 {
		t.Fatalf("RoundTo = %v, want 124", got)
	}
	if got := RoundTo(128.04999, 1); got != 128 {
		t.Fatalf("RoundTo = %v, want 128", got)
	}
}

func TestCheckRange(t *testing.T) {
	if err := CheckRange("pitch", 3, -8, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := CheckRange("pitch", 9, -8, 8)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	var re *RangeError
	if !errors.As(err, &re) || re.Name != "pitch" {
		t.Fatalf("expected *RangeError for pitch, got %v", err)
	}
}

func TestApplyEngineOptions(t *testing.T) {
	cfg := ApplyEngineOptions(WithSampleRate(44100), WithBlockSize(-1), nil, WithFrameRate(30))
	if cfg.SampleRate != 44100 || cfg.BlockSize != 128 || cfg.FrameRate != 30 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
