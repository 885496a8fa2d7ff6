package conv

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

var (
	ErrEmptyKernel      = errors.New("conv: kernel must not be empty")
	ErrInvalidPartition = errors.New("conv: partition size must be a positive power of two")
)

// Convolver is a stateful uniformly partitioned convolver.
type Convolver struct {
	part    int
	fftSize int
	plan    *algofft.Plan[complex128]

	kernels [][]complex128
	fdl     [][]complex128
	fdlPos  int

	window  []float64
	fill    int
	out     []float64
	scratch []complex128
	acc     []complex128
}

// New partitions kernel into blocks of partition samples.
func New(kernel []float64, partition int) (*Convolver, error) {
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}
	if partition <= 0 || partition&(partition-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPartition, partition)
	}

	fftSize := 2 * partition
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	count := (len(kernel) + partition - 1) / partition
	c := &Convolver{
		part:    partition,
		fftSize: fftSize,
		plan:    plan,
		kernels: make([][]complex128, count),
		fdl:     make([][]complex128, count),
		window:  make([]float64, fftSize),
		out:     make([]float64, partition),
		scratch: make([]complex128, fftSize),
		acc:     make([]complex128, fftSize),
	}

	for p := range count {
		padded := make([]complex128, fftSize)
		end := min((p+1)*partition, len(kernel))
		for i, v := range kernel[p*partition : end] {
			padded[i] = complex(v, 0)
		}
		spec := make([]complex128, fftSize)
		if err := plan.Forward(spec, padded); err != nil {
			return nil, fmt.Errorf("conv: kernel FFT failed: %w", err)
		}
		c.kernels[p] = spec
		c.fdl[p] = make([]complex128, fftSize)
	}
	return c, nil
}

// Latency returns the output delay in samples.
func (c *Convolver) Latency() int { return c.part }

// Partitions returns the number of kernel partitions.
func (c *Convolver) Partitions() int { return len(c.kernels) }

// Process convolves src into dst. dst and src must have equal length and may
// alias.
func (c *Convolver) Process(dst, src []float64) error {
	if len(dst) != len(src) {
		return fmt.Errorf("conv: length mismatch: dst %d, src %d", len(dst), len(src))
	}
	for i, x := range src {
		c.window[c.part+c.fill] = x
		dst[i] = c.out[c.fill]
		c.fill++
		if c.fill == c.part {
			if err := c.step(); err != nil {
				return err
			}
			c.fill = 0
		}
	}
	return nil
}

// Reset clears all history.
func (c *Convolver) Reset() {
	for i := range c.window {
		c.window[i] = 0
	}
	for i := range c.out {
		c.out[i] = 0
	}
	for _, s := range c.fdl {
		for i := range s {
			s[i] = 0
		}
	}
	c.fill = 0
	c.fdlPos = 0
}

func (c *Convolver) step() error {
	for i, v := range c.window {
		c.scratch[i] = complex(v, 0)
	}
	cur := c.fdl[c.fdlPos]
	if err := c.plan.Forward(cur, c.scratch); err != nil {
		return fmt.Errorf("conv: forward FFT failed: %w", err)
	}

	for i := range c.acc {
		c.acc[i] = 0
	}
	n := len(c.kernels)
	for p, k := range c.kernels {
		x := c.fdl[(c.fdlPos-p+n)%n]
		for i := range c.acc {
			c.acc[i] += x[i] * k[i]
		}
	}

	if err := c.plan.Inverse(c.scratch, c.acc); err != nil {
		return fmt.Errorf("conv: inverse FFT failed: %w", err)
	}
	for j := range c.out {
		c.out[j] = real(c.scratch[c.part+j])
	}

	copy(c.window[:c.part], c.window[c.part:])
	c.fdlPos = (c.fdlPos + 1) % n
	return nil
}
