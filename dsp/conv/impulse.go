package conv

import (
	"math"
	"math/rand/v2"
)

// DecayingNoise renders a stereo impulse response of uncorrelated noise with
// an exponential envelope reaching -60 dB after decay seconds. The first
// preDelay seconds are silent.
func DecayingNoise(sampleRate, decay, preDelay float64, seed uint64) (l, r []float64) {
	decay = math.Max(decay, 0.001)
	preDelay = math.Max(preDelay, 0)
	n := int(math.Ceil((decay + preDelay) * sampleRate))
	l = make([]float64, n)
	r = make([]float64, n)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	start := int(preDelay * sampleRate)
	k := math.Log(1000) / (decay * sampleRate)
	for i := start; i < n; i++ {
		env := math.Exp(-k * float64(i-start))
		l[i] = (rng.Float64()*2 - 1) * env
		r[i] = (rng.Float64()*2 - 1) * env
	}
	normalize(l, r)
	return l, r
}

func normalize(l, r []float64) {
	var energy float64
	for i := range l {
		energy += l[i]*l[i] + r[i]*r[i]
	}
	if energy == 0 {
		return
	}
	g := 1 / math.Sqrt(energy/2)
	for i := range l {
		l[i] *= g
		r[i] *= g
	}
}
