package graph

// WaveShaper maps each sample through a transfer curve spanning [-1, 1].
// A nil curve passes the signal through.
type WaveShaper struct {
	node

	curve []float64
}

// NewWaveShaper creates a shaper with a copy of curve.
func NewWaveShaper(ctx *Context, curve []float64) *WaveShaper {
	w := &WaveShaper{curve: append([]float64(nil), curve...)}
	w.init(ctx, "WaveShaper", w)
	return w
}

// SetCurve replaces the curve with a copy of curve. It takes effect on the
// next render quantum.
func (w *WaveShaper) SetCurve(curve []float64) {
	c := append([]float64(nil), curve...)
	w.ctx.mu.Lock()
	defer w.ctx.mu.Unlock()
	w.curve = c
}

// Curve returns a copy of the active curve.
func (w *WaveShaper) Curve() []float64 {
	w.ctx.mu.Lock()
	defer w.ctx.mu.Unlock()
	return append([]float64(nil), w.curve...)
}

func (w *WaveShaper) process(in, out block, _ float64) {
	if len(w.curve) < 2 {
		copy(out.l, in.l)
		copy(out.r, in.r)
		return
	}
	for i := range in.l {
		out.l[i] = lookup(w.curve, in.l[i])
		out.r[i] = lookup(w.curve, in.r[i])
	}
}

// lookup reads curve on the grid of shaper.Generate, where sample i holds
// x = i*2/n - 1.
func lookup(curve []float64, x float64) float64 {
	n := len(curve)
	pos := (x + 1) * float64(n) / 2
	if pos <= 0 {
		return curve[0]
	}
	if pos >= float64(n-1) {
		return curve[n-1]
	}
	i := int(pos)
	f := pos - float64(i)
	return curve[i] + (curve[i+1]-curve[i])*f
}
