package graph

import "math"

// Player plays a Buffer with a variable playback rate. Start and Stop are
// scheduled in context time and take effect on the exact frame.
type Player struct {
	node

	// PlaybackRate scales the read speed; 1 is the original speed.
	PlaybackRate *Param

	buf *Buffer

	pos      float64
	playing  bool
	startAt  float64
	startOff float64
	stopAt   float64
}

// NewPlayer creates a player for buf.
func NewPlayer(ctx *Context, buf *Buffer) *Player {
	p := &Player{
		buf:          buf,
		startAt:      -1,
		stopAt:       -1,
		PlaybackRate: newParam(ctx, "playbackRate", 1, 0.01, 4),
	}
	p.init(ctx, "Player", p)
	return p
}

func (p *Player) sourceOnly() {}

// Buffer returns the loaded audio.
func (p *Player) Buffer() *Buffer { return p.buf }

// Start begins playback at context time when from offset seconds into the
// buffer. A pending start is replaced.
func (p *Player) Start(when, offset float64) error {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	if p.disposed {
		return ErrDisposed
	}
	p.startAt = math.Max(when, 0)
	p.startOff = math.Max(offset, 0)
	return nil
}

// Stop ends playback at context time when. A stop scheduled at the same time
// as a start applies first, so Stop(t) followed by Start(t, x) restarts
// without a gap.
func (p *Player) Stop(when float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	if !p.playing && p.startAt < 0 {
		return
	}
	if p.startAt >= 0 && p.startAt >= when {
		p.startAt = -1
		if !p.playing {
			return
		}
	}
	p.stopAt = math.Max(when, 0)
}

// Playing reports whether the player is producing sound.
func (p *Player) Playing() bool {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.playing
}

// Position returns the read position in buffer seconds.
func (p *Player) Position() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.pos / p.buf.SampleRate
}

func (p *Player) pull(_ int64, frames int, t0 float64, out block) {
	rate := p.PlaybackRate.block(t0, frames)
	sr := p.ctx.sampleRate
	step := p.buf.SampleRate / sr
	last := float64(p.buf.Frames() - 1)
	for i := range frames {
		t := t0 + float64(i)/sr
		if p.stopAt >= 0 && t >= p.stopAt {
			p.playing = false
			p.stopAt = -1
		}
		if p.startAt >= 0 && t >= p.startAt {
			p.playing = true
			p.pos = p.startOff * p.buf.SampleRate
			p.startAt = -1
		}
		if !p.playing || p.pos > last {
			p.playing = p.playing && p.pos <= last
			out.l[i], out.r[i] = 0, 0
			continue
		}
		idx := int(p.pos)
		frac := p.pos - float64(idx)
		next := min(idx+1, int(last))
		out.l[i] = p.buf.L[idx] + (p.buf.L[next]-p.buf.L[idx])*frac
		out.r[i] = p.buf.R[idx] + (p.buf.R[next]-p.buf.R[idx])*frac
		p.pos += rate[i] * step
	}
}

func (p *Player) process(_, _ block, _ float64) {}
