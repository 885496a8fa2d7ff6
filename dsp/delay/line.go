// Package delay provides the circular delay line behind the feedback delay,
// chorus and vibrato nodes.
package delay

import (
	"fmt"
	"math"
)

// Line is a circular delay line.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line able to hold size samples.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay: size must be > 0: %d", size)
	}
	return &Line{buffer: make([]float64, size)}, nil
}

// ForDuration returns a line long enough for maxSeconds at sampleRate.
func ForDuration(maxSeconds, sampleRate float64) (*Line, error) {
	return New(int(math.Ceil(maxSeconds*sampleRate)) + 4)
}

// Len returns the buffer size.
func (d *Line) Len() int { return len(d.buffer) }

// Write pushes one sample.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read returns the sample written delay samples ago. Read(1) is the most
// recent sample.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	readPos := ((d.writePos-delay)%size + size) % size
	return d.buffer[readPos]
}

// ReadFractional reads a fractional delay with cubic Hermite interpolation.
func (d *Line) ReadFractional(delay float64) float64 {
	maxDelay := float64(len(d.buffer) - 3)
	if delay < 1 {
		delay = 1
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	p := int(delay)
	t := delay - float64(p)
	xm1 := d.Read(p - 1)
	x0 := d.Read(p)
	x1 := d.Read(p + 1)
	x2 := d.Read(p + 2)
	return hermite4(t, xm1, x0, x1, x2)
}

// Reset clears the line.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
}

func hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}
