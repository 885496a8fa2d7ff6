package biquad

import (
	"fmt"
	"math"
	"strings"
)

// DefaultQ is the Butterworth Q.
const DefaultQ = 1 / math.Sqrt2

// Kind names a filter response.
type Kind int

const (
	Lowpass Kind = iota
	Highpass
	Bandpass
	Notch
	Allpass
	LowShelf
	HighShelf
	Peaking
)

var kindNames = [...]string{"lowpass", "highpass", "bandpass", "notch", "allpass", "lowshelf", "highshelf", "peaking"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a response name to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return Lowpass, fmt.Errorf("biquad: unknown filter type %q", s)
}

// Design returns RBJ cookbook coefficients for kind. gainDB is only used by
// the shelf and peaking responses. Frequencies are clamped into (0, nyquist).
func Design(kind Kind, freq, q, gainDB, sampleRate float64) Coefficients {
	if sampleRate <= 0 || math.IsNaN(freq) {
		return Identity()
	}
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		q = DefaultQ
	}
	freq = math.Min(math.Max(freq, 1), sampleRate*0.49)

	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)
	a := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch kind {
	case Lowpass:
		b0 = (1 - cw) / 2
		b1 = 1 - cw
		b2 = (1 - cw) / 2
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Highpass:
		b0 = (1 + cw) / 2
		b1 = -(1 + cw)
		b2 = (1 + cw) / 2
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Bandpass:
		b0, b1, b2 = alpha, 0, -alpha
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Notch:
		b0, b1, b2 = 1, -2*cw, 1
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Allpass:
		b0, b1, b2 = 1-alpha, -2*cw, 1+alpha
		a0, a1, a2 = 1+alpha, -2*cw, 1-alpha
	case Peaking:
		b0, b1, b2 = 1+alpha*a, -2*cw, 1-alpha*a
		a0, a1, a2 = 1+alpha/a, -2*cw, 1-alpha/a
	case LowShelf:
		beta := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) - (a-1)*cw + beta)
		b1 = 2 * a * ((a - 1) - (a+1)*cw)
		b2 = a * ((a + 1) - (a-1)*cw - beta)
		a0 = (a + 1) + (a-1)*cw + beta
		a1 = -2 * ((a - 1) + (a+1)*cw)
		a2 = (a + 1) + (a-1)*cw - beta
	case HighShelf:
		beta := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) + (a-1)*cw + beta)
		b1 = -2 * a * ((a - 1) + (a+1)*cw)
		b2 = a * ((a + 1) + (a-1)*cw - beta)
		a0 = (a + 1) - (a-1)*cw + beta
		a1 = 2 * ((a - 1) - (a+1)*cw)
		a2 = (a + 1) - (a-1)*cw - beta
	default:
		return Identity()
	}
	return normalize(b0, b1, b2, a0, a1, a2)
}

func normalize(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	if a0 == 0 || math.IsNaN(a0) || math.IsInf(a0, 0) {
		return Identity()
	}
	inv := 1 / a0
	return Coefficients{
		B0: b0 * inv,
		B1: b1 * inv,
		B2: b2 * inv,
		A1: a1 * inv,
		A2: a2 * inv,
	}
}
