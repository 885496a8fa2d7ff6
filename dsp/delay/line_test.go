package delay

import (
	"math"
	"testing"
)

func TestLineReadsBack(t *testing.T) {
	d, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 1; i <= 5; i++ {
		d.Write(float64(i))
	}
	if got := d.Read(1); got != 5 {
		t.Fatalf("Read(1) = %v, want 5", got)
	}
	if got := d.Read(3); got != 3 {
		t.Fatalf("Read(3) = %v, want 3", got)
	}
}

func TestLineFractionalInterpolatesRamp(t *testing.T) {
	d, _ := New(16)
	for i := range 16 {
		d.Write(float64(i))
	}
	// Most recent sample is 15; a delay of 2.5 sits between 14 and 13.
	if got := d.ReadFractional(2.5); math.Abs(got-13.5) > 1e-12 {
		t.Fatalf("ReadFractional(2.5) = %v, want 13.5", got)
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestReset(t *testing.T) {
	d, _ := New(4)
	d.Write(1)
	d.Reset()
	for i := 1; i <= 4; i++ {
		if d.Read(i) != 0 {
			t.Fatalf("Read(%d) not cleared", i)
		}
	}
}
