package graph

import "math"

// CrossFade blends two inputs with equal power. Fade 0 is input A only and
// fade 1 is input B only.
type CrossFade struct {
	node

	Fade *Param

	a, b *Gain
}

// NewCrossFade creates a crossfader at the given position.
func NewCrossFade(ctx *Context, fade float64) *CrossFade {
	c := &CrossFade{
		Fade: newParam(ctx, "fade", fade, 0, 1),
		a:    NewGain(ctx, 1),
		b:    NewGain(ctx, 1),
	}
	c.init(ctx, "CrossFade", c)
	c.a.fixedOut = []*node{&c.node}
	c.b.fixedOut = []*node{&c.node}
	c.children = []*node{&c.a.node, &c.b.node}
	return c
}

// A returns the input for the left side of the fader.
func (c *CrossFade) A() *Gain { return c.a }

// B returns the input for the right side of the fader.
func (c *CrossFade) B() *Gain { return c.b }

func (c *CrossFade) pull(q int64, frames int, t0 float64, out block) {
	a := c.a.render(q, frames, t0)
	b := c.b.render(q, frames, t0)
	fade := c.Fade.block(t0, frames)
	for i := range frames {
		ga := math.Cos(fade[i] * math.Pi / 2)
		gb := math.Sin(fade[i] * math.Pi / 2)
		out.l[i] = a.l[i]*ga + b.l[i]*gb
		out.r[i] = a.r[i]*ga + b.r[i]*gb
	}
}

func (c *CrossFade) process(_, _ block, _ float64) {}

// Inputs go to A or B, never to the fader itself.
func (c *CrossFade) sourceOnly() {}
