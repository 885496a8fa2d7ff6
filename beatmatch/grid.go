package beatmatch

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidGrid marks a malformed beat grid.
var ErrInvalidGrid = errors.New("beatmatch: invalid beat grid")

// downbeatTolerance is how far a downbeat may sit from its beat, in seconds.
const downbeatTolerance = 0.001

// Grid is one deck's beat grid.
type Grid struct {
	Beats     []float64 `yaml:"beats" json:"beats"`
	Downbeats []float64 `yaml:"downbeats" json:"downbeats"`
	BPM       float64   `yaml:"bpm" json:"bpm"`
}

// Validate checks that the BPM is positive and finite, that beats strictly
// increase and that downbeats are an ordered subsequence of beats.
func (g Grid) Validate() error {
	if !(g.BPM > 0) || math.IsInf(g.BPM, 0) {
		return fmt.Errorf("%w: bpm %v", ErrInvalidGrid, g.BPM)
	}
	for i, b := range g.Beats {
		if math.IsNaN(b) || b < 0 {
			return fmt.Errorf("%w: beat %d is %v", ErrInvalidGrid, i, b)
		}
		if i > 0 && b <= g.Beats[i-1] {
			return fmt.Errorf("%w: beat %d (%v) not after %v", ErrInvalidGrid, i, b, g.Beats[i-1])
		}
	}
	for i, d := range g.Downbeats {
		if i > 0 && d <= g.Downbeats[i-1] {
			return fmt.Errorf("%w: downbeat %d (%v) not after %v", ErrInvalidGrid, i, d, g.Downbeats[i-1])
		}
		if idx := FindNearestBeat(d, g.Beats); idx < 0 || math.Abs(g.Beats[idx]-d) > downbeatTolerance {
			return fmt.Errorf("%w: downbeat %d (%v) is not a beat", ErrInvalidGrid, i, d)
		}
	}
	return nil
}

// Empty reports whether the grid has no beats.
func (g Grid) Empty() bool { return len(g.Beats) == 0 }

func (g Grid) clone() Grid {
	return Grid{
		Beats:     append([]float64(nil), g.Beats...),
		Downbeats: append([]float64(nil), g.Downbeats...),
		BPM:       g.BPM,
	}
}

// FindNearestBeat returns the index of the beat closest to t, or -1 for an
// empty grid. Ties go to the earlier beat.
func FindNearestBeat(t float64, beats []float64) int {
	if len(beats) == 0 {
		return -1
	}
	nearest := 0
	best := math.Abs(beats[0] - t)
	for i := 1; i < len(beats); i++ {
		if d := math.Abs(beats[i] - t); d < best {
			best = d
			nearest = i
		}
	}
	return nearest
}

// BoundaryBars is the number of downbeats between section boundaries.
const BoundaryBars = 8

// FindSectionBoundaries returns every eighth downbeat, starting with the
// first. bpm is accepted for symmetry with the grid but does not change the
// policy.
func FindSectionBoundaries(downbeats []float64, _ float64) []float64 {
	out := make([]float64, 0, (len(downbeats)+BoundaryBars-1)/BoundaryBars)
	for i := 0; i < len(downbeats); i += BoundaryBars {
		out = append(out, downbeats[i])
	}
	return out
}

// firstAfter returns the first boundary strictly greater than t.
func firstAfter(boundaries []float64, t float64) (float64, bool) {
	i := sort.Search(len(boundaries), func(i int) bool { return boundaries[i] > t })
	if i == len(boundaries) {
		return 0, false
	}
	return boundaries[i], true
}
