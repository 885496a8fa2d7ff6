// Package dynamics implements the soft-knee compressor used by the channel
// strip and the rack compressor nodes.
package dynamics

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultThresholdDB = -24.0
	DefaultRatio       = 4.0
	DefaultKneeDB      = 6.0
	DefaultAttack      = 0.01
	DefaultRelease     = 0.1

	MinThresholdDB = -100.0
	MaxThresholdDB = 0.0
	MinRatio       = 1.0
	MaxRatio       = 20.0
	MinKneeDB      = 0.0
	MaxKneeDB      = 40.0
	MinAttack      = 0.0
	MaxAttack      = 1.0
	MinRelease     = 0.0
	MaxRelease     = 1.0

	// log2(10)/20, converts dB to the log2 domain.
	log2Of10Div20 = 0.166096404744

	// shortest time constant used for the envelope follower, in seconds.
	minTimeConstant = 1e-4
)

// ErrInvalidParameter is wrapped by every setter validation error.
var ErrInvalidParameter = errors.New("dynamics: invalid parameter")

// Compressor is a stereo-linked soft-knee compressor with a peak envelope
// follower and log2-domain gain computation. Attack and release are given in
// seconds.
//
// Not safe for concurrent use.
type Compressor struct {
	thresholdDB float64
	ratio       float64
	kneeDB      float64
	attack      float64
	release     float64
	sampleRate  float64

	envelope float64
	lastGain float64

	attackCoeff   float64
	releaseCoeff  float64
	thresholdLog2 float64
	kneeLog2      float64
	invKneeLog2   float64
}

// NewCompressor creates a compressor with the strip defaults
// (-24 dB, 4:1, 6 dB knee, 10 ms attack, 100 ms release).
func NewCompressor(sampleRate float64) (*Compressor, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: sample rate %v", ErrInvalidParameter, sampleRate)
	}
	c := &Compressor{
		thresholdDB: DefaultThresholdDB,
		ratio:       DefaultRatio,
		kneeDB:      DefaultKneeDB,
		attack:      DefaultAttack,
		release:     DefaultRelease,
		sampleRate:  sampleRate,
		lastGain:    1,
	}
	c.update()
	return c, nil
}

// SetThreshold sets the threshold in dBFS.
func (c *Compressor) SetThreshold(dB float64) error {
	if err := check("threshold", dB, MinThresholdDB, MaxThresholdDB); err != nil {
		return err
	}
	c.thresholdDB = dB
	c.update()
	return nil
}

// SetRatio sets the compression ratio.
func (c *Compressor) SetRatio(ratio float64) error {
	if err := check("ratio", ratio, MinRatio, MaxRatio); err != nil {
		return err
	}
	c.ratio = ratio
	c.update()
	return nil
}

// SetKnee sets the soft knee width in dB. Zero is a hard knee.
func (c *Compressor) SetKnee(dB float64) error {
	if err := check("knee", dB, MinKneeDB, MaxKneeDB); err != nil {
		return err
	}
	c.kneeDB = dB
	c.update()
	return nil
}

// SetAttack sets the attack time in seconds.
func (c *Compressor) SetAttack(seconds float64) error {
	if err := check("attack", seconds, MinAttack, MaxAttack); err != nil {
		return err
	}
	c.attack = seconds
	c.update()
	return nil
}

// SetRelease sets the release time in seconds.
func (c *Compressor) SetRelease(seconds float64) error {
	if err := check("release", seconds, MinRelease, MaxRelease); err != nil {
		return err
	}
	c.release = seconds
	c.update()
	return nil
}

func (c *Compressor) Threshold() float64 { return c.thresholdDB }
func (c *Compressor) Ratio() float64     { return c.ratio }
func (c *Compressor) Knee() float64      { return c.kneeDB }
func (c *Compressor) Attack() float64    { return c.attack }
func (c *Compressor) Release() float64   { return c.release }

// Reduction returns the most recent gain reduction in dB (<= 0).
func (c *Compressor) Reduction() float64 {
	return 20 * math.Log10(c.lastGain)
}

// ProcessStereo compresses l and r in place with a shared detector.
// r may be nil for mono use.
func (c *Compressor) ProcessStereo(l, r []float64) {
	for i := range l {
		level := math.Abs(l[i])
		if r != nil {
			if v := math.Abs(r[i]); v > level {
				level = v
			}
		}
		if level > c.envelope {
			c.envelope += (level - c.envelope) * c.attackCoeff
		} else {
			c.envelope = level + (c.envelope-level)*c.releaseCoeff
		}
		g := c.gain(c.envelope)
		c.lastGain = g
		l[i] *= g
		if r != nil {
			r[i] *= g
		}
	}
	if c.envelope < 1e-30 {
		c.envelope = 0
	}
}

// StaticGain returns the steady-state gain for a constant input magnitude.
func (c *Compressor) StaticGain(level float64) float64 {
	return c.gain(math.Abs(level))
}

// Reset clears the envelope follower.
func (c *Compressor) Reset() {
	c.envelope = 0
	c.lastGain = 1
}

func (c *Compressor) update() {
	c.thresholdLog2 = c.thresholdDB * log2Of10Div20
	c.kneeLog2 = c.kneeDB * log2Of10Div20
	if c.kneeLog2 > 0 {
		c.invKneeLog2 = 1 / c.kneeLog2
	} else {
		c.invKneeLog2 = 0
	}
	attack := math.Max(c.attack, minTimeConstant)
	release := math.Max(c.release, minTimeConstant)
	c.attackCoeff = 1 - math.Exp(-math.Ln2/(attack*c.sampleRate))
	c.releaseCoeff = math.Exp(-math.Ln2 / (release * c.sampleRate))
}

func (c *Compressor) gain(level float64) float64 {
	if level <= 0 {
		return 1
	}
	overshoot := mathLog2(level) - c.thresholdLog2
	if c.kneeLog2 <= 0 {
		if overshoot <= 0 {
			return 1
		}
		return mathPower2(-overshoot * (1 - 1/c.ratio))
	}

	half := c.kneeLog2 * 0.5
	var eff float64
	switch {
	case overshoot < -half:
		return 1
	case overshoot > half:
		eff = overshoot
	default:
		s := overshoot + half
		eff = s * s * 0.5 * c.invKneeLog2
	}
	return mathPower2(-eff * (1 - 1/c.ratio))
}

func check(name string, v, min, max float64) error {
	if math.IsNaN(v) || v < min || v > max {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidParameter, name, v, min, max)
	}
	return nil
}
