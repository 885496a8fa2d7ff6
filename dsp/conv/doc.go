// Package conv implements streaming FFT convolution for long impulse
// responses (reverb tails, cabinet and convolver effects).
//
// The Convolver uses uniformly partitioned overlap-save with a
// frequency-domain delay line. It accepts input of any length per call and
// delays the output by one partition.
package conv
