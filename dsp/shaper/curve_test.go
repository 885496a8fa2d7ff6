package shaper

import (
	"math"
	"testing"
)

func TestGenerateGrid(t *testing.T) {
	c := Generate(4, func(x float64) float64 { return x })
	want := []float64{-1, -0.5, 0, 0.5}
	for i := range want {
		if c[i] != want[i] {
			t.Fatalf("curve[%d] = %v, want %v", i, c[i], want[i])
		}
	}
}

func TestSaturationCurveDependsOnDrive(t *testing.T) {
	for _, kind := range []Saturation{Tape, Console} {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()
			a := SaturationCurve(kind, 0.2)
			b := SaturationCurve(kind, 0.5)
			if len(a) != Size || len(b) != Size {
				t.Fatalf("unexpected sizes %d %d", len(a), len(b))
			}
			same := true
			for i := range a {
				if a[i] != b[i] {
					same = false
					break
				}
			}
			if same {
				t.Fatal("curves for drive 0.2 and 0.5 are identical")
			}
		})
	}
}

func TestTapeMatchesFormula(t *testing.T) {
	c := SaturationCurve(Tape, 0.3)
	x := 1500.0*2/Size - 1
	if want := math.Tanh(x * 4); math.Abs(c[1500]-want) > 1e-12 {
		t.Fatalf("curve[1500] = %v, want %v", c[1500], want)
	}
}

func TestConsoleClips(t *testing.T) {
	c := SaturationCurve(Console, 1)
	if c[0] != -1 || c[Size-1] != 1 {
		t.Fatalf("ends = %v %v, want -1 1", c[0], c[Size-1])
	}
}

func TestTubeIsAsymmetric(t *testing.T) {
	f := TubeFunc(0.5)
	if math.Abs(f(0.3)) <= math.Abs(f(-0.3)) {
		t.Fatalf("positive half should be driven harder: %v vs %v", f(0.3), f(-0.3))
	}
	if want := math.Tanh(-0.3 * 5 * 0.8); math.Abs(f(-0.3)-want) > 1e-12 {
		t.Fatalf("negative half = %v, want %v", f(-0.3), want)
	}
}

func TestChebyshevOrders(t *testing.T) {
	tests := []struct {
		order int
		x     float64
		want  float64
	}{
		{order: 1, x: 0.4, want: 0.4},
		{order: 2, x: 0.4, want: 2*0.16 - 1},
		{order: 3, x: 0.5, want: 4*0.125 - 3*0.5},
	}
	for _, tt := range tests {
		if got := ChebyshevFunc(tt.order)(tt.x); math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("T%d(%v) = %v, want %v", tt.order, tt.x, got, tt.want)
		}
	}
}

func TestParseSaturation(t *testing.T) {
	if s, err := ParseSaturation("Console"); err != nil || s != Console {
		t.Fatalf("ParseSaturation = %v, %v", s, err)
	}
	if _, err := ParseSaturation("valve"); err == nil {
		t.Fatal("expected error")
	}
}
