package sched

import (
	"sync"
	"time"
)

// ManualClock is a Clock advanced by hand, for tests and offline rendering.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

// Now returns the current time.
func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// WallClock reports seconds elapsed since it was created.
type WallClock struct {
	start time.Time
}

// NewWallClock starts a wall clock at zero.
func NewWallClock() *WallClock { return &WallClock{start: time.Now()} }

// Now returns elapsed seconds.
func (c *WallClock) Now() float64 { return time.Since(c.start).Seconds() }
