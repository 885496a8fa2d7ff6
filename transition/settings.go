package transition

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidSettings is returned for a transition that cannot run.
var ErrInvalidSettings = errors.New("transition: invalid settings")

// Type selects the automation applied over a transition.
type Type int

// Transition types.
const (
	Blend Type = iota
	Drop
	SpinBack
	Echo
	Filter
	numTypes
)

var typeNames = [numTypes]string{"blend", "drop", "spinBack", "echo", "filter"}

func (t Type) String() string {
	if t < 0 || t >= numTypes {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType accepts the names printed by String, case-insensitively.
func ParseType(s string) (Type, error) {
	name := strings.TrimSpace(s)
	for i, n := range typeNames {
		if strings.EqualFold(n, name) {
			return Type(i), nil
		}
	}
	return Blend, fmt.Errorf("%w: unknown type %q", ErrInvalidSettings, s)
}

// Settings describe one transition. They are consumed by a single
// ExecuteTransition call.
type Settings struct {
	Type Type
	// Duration in seconds.
	Duration float64
	// BeatAlign defers the start to the next section boundary reported by
	// the engine's aligner.
	BeatAlign bool
	// EQSwap trades deck A's low band for deck B's between 30% and 70%.
	EQSwap bool
	// FilterSweep adds the filter sweep to types other than Filter.
	FilterSweep bool
}

// DefaultSettings is an eight second blend.
func DefaultSettings() Settings {
	return Settings{Type: Blend, Duration: 8}
}

// Validate rejects unknown types and non-positive durations.
func (s Settings) Validate() error {
	if s.Type < 0 || s.Type >= numTypes {
		return fmt.Errorf("%w: type %d", ErrInvalidSettings, int(s.Type))
	}
	if !(s.Duration > 0) || math.IsInf(s.Duration, 1) {
		return fmt.Errorf("%w: duration %v", ErrInvalidSettings, s.Duration)
	}
	return nil
}

// Curve maps the crossfader position to the fade actually applied.
type Curve int

// Crossfader curves.
const (
	EqualPower Curve = iota
	Linear
	Scratch
	numCurves
)

var curveNames = [numCurves]string{"equalPower", "linear", "scratch"}

func (c Curve) String() string {
	if c < 0 || c >= numCurves {
		return fmt.Sprintf("Curve(%d)", int(c))
	}
	return curveNames[c]
}

// ParseCurve accepts the names printed by String, case-insensitively.
func ParseCurve(s string) (Curve, error) {
	name := strings.TrimSpace(s)
	for i, n := range curveNames {
		if strings.EqualFold(n, name) {
			return Curve(i), nil
		}
	}
	return EqualPower, fmt.Errorf("transition: unknown curve %q", s)
}

// Apply maps v in [0, 1] through the curve.
func (c Curve) Apply(v float64) float64 {
	switch c {
	case Linear:
		return v
	case Scratch:
		if v < 0.5 {
			return 0
		}
		return 1
	}
	return math.Sin(v * math.Pi / 2)
}

// Band is one band of a deck EQ.
type Band int

// EQ bands.
const (
	Low Band = iota
	Mid
	High
)

func (b Band) String() string {
	switch b {
	case Low:
		return "low"
	case Mid:
		return "mid"
	case High:
		return "high"
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// ParseBand accepts low, mid or high.
func ParseBand(s string) (Band, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "mid":
		return Mid, nil
	case "high":
		return High, nil
	}
	return Low, fmt.Errorf("transition: unknown band %q", s)
}
