package graph

import (
	"errors"
	"math"
	"sync"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
)

var (
	// ErrDisposed is returned when operating on a disposed node.
	ErrDisposed = errors.New("graph: node disposed")
	// ErrCycle is returned when a connection would create a feedback loop.
	ErrCycle = errors.New("graph: connection would create a cycle")
	// ErrNoInput is returned when connecting into a source-only node.
	ErrNoInput = errors.New("graph: node has no input")
	// ErrForeignNode is returned when connecting nodes of different contexts.
	ErrForeignNode = errors.New("graph: nodes belong to different contexts")
)

// Context is the rendering clock and the owner of every node created on it.
type Context struct {
	mu sync.Mutex

	sampleRate float64
	blockSize  int

	frame   int64
	quantum int64
	dest    *Destination
}

// NewContext creates a context. Only the sample rate and block size of the
// engine config are used.
func NewContext(opts ...core.EngineOption) *Context {
	cfg := core.ApplyEngineOptions(opts...)
	c := &Context{
		sampleRate: cfg.SampleRate,
		blockSize:  cfg.BlockSize,
	}
	c.dest = &Destination{}
	c.dest.init(c, "destination", sumProcessor{})
	return c
}

// SampleRate returns the render sample rate in Hz.
func (c *Context) SampleRate() float64 { return c.sampleRate }

// BlockSize returns the render quantum in frames.
func (c *Context) BlockSize() int { return c.blockSize }

// Now returns the context time in seconds: the start of the next quantum.
func (c *Context) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *Context) now() float64 {
	return float64(c.frame) / c.sampleRate
}

// Destination returns the node whose input is the context output.
func (c *Context) Destination() *Destination { return c.dest }

// Render pulls len(l) frames from the destination into l and r.
func (c *Context) Render(l, r []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := min(len(l), len(r))
	for off := 0; off < n; {
		frames := min(c.blockSize, n-off)
		c.quantum++
		out := c.dest.render(c.quantum, frames, c.now())
		copy(l[off:off+frames], out.l)
		copy(r[off:off+frames], out.r)
		off += frames
		c.frame += int64(frames)
	}
}

// RenderInterleaved fills dst with stereo frames. It matches the sample
// layout used by the audio output streamers.
func (c *Context) RenderInterleaved(dst [][2]float64) {
	l := make([]float64, len(dst))
	r := make([]float64, len(dst))
	c.Render(l, r)
	for i := range dst {
		dst[i] = [2]float64{l[i], r[i]}
	}
}

// Advance moves the clock forward by seconds without pulling the graph.
// Source positions do not advance. It exists for control-only sessions.
func (c *Context) Advance(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds > 0 {
		c.frame += int64(seconds * c.sampleRate)
	}
}

var inf = math.Inf(1)
