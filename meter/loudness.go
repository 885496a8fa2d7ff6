package meter

import (
	"math"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/biquad"
)

// BS.1770 K-weighting and gating constants.
const (
	kShelfFreq = 1500.0
	kShelfGain = 4.0
	kHPFreq    = 38.0

	momentaryWindow = 0.4
	shortTermWindow = 3.0

	absoluteGate = -70.0
	relativeGate = -10.0
	blockStep    = 0.25 // of the momentary window, i.e. 75% overlap

	// LUFSFloor is reported for silence.
	LUFSFloor = -120.0
)

// Loudness is an EBU R128 loudness meter for a stereo signal. Integrated
// loudness covers everything written since creation or Reset. Not safe for
// concurrent use.
type Loudness struct {
	shelf, hp [2]*biquad.Section

	mom, short     [2]window
	step, sinceBlk int
	blocks         []float64
	peak           float64
}

type window struct {
	sq  []float64
	pos int
	sum float64
}

func newWindow(n int) window { return window{sq: make([]float64, max(n, 1))} }

func (w *window) push(v float64) {
	w.sum += v - w.sq[w.pos]
	if w.sum < 0 {
		w.sum = 0
	}
	w.sq[w.pos] = v
	w.pos++
	if w.pos == len(w.sq) {
		w.pos = 0
	}
}

func (w *window) mean() float64 { return w.sum / float64(len(w.sq)) }

// NewLoudness creates a meter at sampleRate.
func NewLoudness(sampleRate float64) *Loudness {
	m := &Loudness{step: max(1, int(math.Round(momentaryWindow*blockStep*sampleRate)))}
	shelf := biquad.Design(biquad.HighShelf, kShelfFreq, biquad.DefaultQ, kShelfGain, sampleRate)
	hp := biquad.Design(biquad.Highpass, kHPFreq, biquad.DefaultQ, 0, sampleRate)
	for ch := range 2 {
		m.shelf[ch] = biquad.NewSection(shelf)
		m.hp[ch] = biquad.NewSection(hp)
		m.mom[ch] = newWindow(int(math.Round(momentaryWindow * sampleRate)))
		m.short[ch] = newWindow(int(math.Round(shortTermWindow * sampleRate)))
	}
	return m
}

// Reset clears all state.
func (m *Loudness) Reset() {
	for ch := range 2 {
		m.shelf[ch].Reset()
		m.hp[ch].Reset()
		m.mom[ch] = newWindow(len(m.mom[ch].sq))
		m.short[ch] = newWindow(len(m.short[ch].sq))
	}
	m.sinceBlk = 0
	m.blocks = m.blocks[:0]
	m.peak = 0
}

// Write folds a stereo block into the meter.
func (m *Loudness) Write(l, r []float64) {
	n := min(len(l), len(r))
	for i := range n {
		for ch, x := range [2]float64{l[i], r[i]} {
			m.peak = math.Max(m.peak, math.Abs(x))
			y := m.hp[ch].ProcessSample(m.shelf[ch].ProcessSample(x))
			m.mom[ch].push(y * y)
			m.short[ch].push(y * y)
		}
		m.sinceBlk++
		if m.sinceBlk >= m.step {
			m.sinceBlk = 0
			m.blocks = append(m.blocks, m.mom[0].mean()+m.mom[1].mean())
		}
	}
}

// Momentary returns the loudness of the last 400 ms in LUFS.
func (m *Loudness) Momentary() float64 { return lufs(m.mom[0].mean() + m.mom[1].mean()) }

// ShortTerm returns the loudness of the last 3 s in LUFS.
func (m *Loudness) ShortTerm() float64 { return lufs(m.short[0].mean() + m.short[1].mean()) }

// Integrated returns the gated programme loudness in LUFS.
func (m *Loudness) Integrated() float64 {
	var sum float64
	var n int
	for _, b := range m.blocks {
		if lufs(b) > absoluteGate {
			sum += b
			n++
		}
	}
	if n == 0 {
		return LUFSFloor
	}
	gate := lufs(sum/float64(n)) + relativeGate
	sum, n = 0, 0
	for _, b := range m.blocks {
		if l := lufs(b); l > absoluteGate && l > gate {
			sum += b
			n++
		}
	}
	if n == 0 {
		return LUFSFloor
	}
	return lufs(sum / float64(n))
}

// PeakDB returns the sample peak since Reset in dBFS.
func (m *Loudness) PeakDB() float64 {
	if m.peak <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(m.peak)
}

func lufs(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return LUFSFloor
	}
	return -0.691 + 10*math.Log10(meanSquare)
}
