// Package analysis talks to the track analysis collaborator. It fetches beat
// grids, sections and BPM estimates over HTTP or from YAML sidecar files and
// validates them before they reach a deck.
package analysis

import (
	"errors"
	"fmt"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/beatmatch"
)

// ErrNoSource is returned when neither a sidecar nor a service is available.
var ErrNoSource = errors.New("analysis: no sidecar and no service configured")

// Error reports a failed analysis. Op is one of "request", "status",
// "decode", "validate" or "sidecar".
type Error struct {
	Source     string
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis: %s %s: HTTP %d: %v", e.Op, e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("analysis: %s %s: %v", e.Op, e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the analysis of one track.
type Result struct {
	FileID        string              `json:"fileId" yaml:"fileId"`
	BPM           float64             `json:"bpm" yaml:"bpm"`
	TimeSignature string              `json:"timeSignature,omitempty" yaml:"timeSignature,omitempty"`
	Beats         []float64           `json:"beats" yaml:"beats"`
	Downbeats     []float64           `json:"downbeats" yaml:"downbeats"`
	Sections      []beatmatch.Section `json:"sections" yaml:"sections"`
	Duration      float64             `json:"duration" yaml:"duration"`

	// DownbeatIndices index into Beats. They are resolved into Downbeats
	// when Downbeats is empty.
	DownbeatIndices []int `json:"downbeatIndices,omitempty" yaml:"downbeatIndices,omitempty"`
}

// InitialBPM returns the tempo estimate.
func (r *Result) InitialBPM() float64 { return r.BPM }

// Grid returns the beat grid.
func (r *Result) Grid() beatmatch.Grid {
	return beatmatch.Grid{Beats: r.Beats, Downbeats: r.Downbeats, BPM: r.BPM}
}

// normalize resolves downbeat indices and canonicalizes section names.
// Unknown section names are kept.
func (r *Result) normalize() error {
	if len(r.Downbeats) == 0 && len(r.DownbeatIndices) > 0 {
		r.Downbeats = make([]float64, 0, len(r.DownbeatIndices))
		for _, i := range r.DownbeatIndices {
			if i < 0 || i >= len(r.Beats) {
				return fmt.Errorf("%w: downbeat index %d outside %d beats", beatmatch.ErrInvalidGrid, i, len(r.Beats))
			}
			r.Downbeats = append(r.Downbeats, r.Beats[i])
		}
	}
	for i, s := range r.Sections {
		if n, err := beatmatch.ParseSectionName(string(s.Name)); err == nil {
			r.Sections[i].Name = n
		}
	}
	return nil
}

// Validate checks the grid and the sections.
func (r *Result) Validate() error {
	if err := r.Grid().Validate(); err != nil {
		return err
	}
	return beatmatch.ValidateSections(r.Sections)
}
