package graph

import (
	"errors"
	"fmt"
)

// Buffer is decoded stereo audio held in memory.
type Buffer struct {
	SampleRate float64
	L, R       []float64
}

// NewBuffer wraps the channel data. A nil r duplicates l.
func NewBuffer(sampleRate float64, l, r []float64) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("graph: invalid buffer sample rate %v", sampleRate)
	}
	if len(l) == 0 {
		return nil, errors.New("graph: empty buffer")
	}
	if r == nil {
		r = l
	}
	if len(r) != len(l) {
		return nil, fmt.Errorf("graph: channel length mismatch: %d vs %d", len(l), len(r))
	}
	return &Buffer{SampleRate: sampleRate, L: l, R: r}, nil
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int { return len(b.L) }

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(len(b.L)) / b.SampleRate
}
