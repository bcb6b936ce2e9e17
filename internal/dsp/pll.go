// Package dsp holds the small primitives the OFDM demodulator is built from:
// oscillator rotation, conjugate multiply-sum, FFT plans and log-magnitude
// spectra. All functions are safe to call concurrently on disjoint slices.
package dsp

import (
	"math"
	"math/cmplx"
)

// ApplyPLL mixes src with a complex oscillator and writes the result to dst:
//
//	dst[i] = src[i] * exp(j*(phase0 + 2*pi*freq*i))
//
// freq is normalized to the sample rate. dst and src may be the same slice.
func ApplyPLL(dst, src []complex128, freq, phase0 float64) {
	step := 2 * math.Pi * freq
	for i := range src {
		s, c := math.Sincos(phase0 + step*float64(i))
		dst[i] = src[i] * complex(c, s)
	}
}

// ConjMulSum returns the sum of conj(a[i])*b[i] over the shorter of the two
// slices.
func ConjMulSum(a, b []complex128) complex128 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum complex128
	for i := 0; i < n; i++ {
		sum += cmplx.Conj(a[i]) * b[i]
	}
	return sum
}

// Magnitude converts an FFT buffer into an FFT-shifted decibel spectrum:
//
//	dst[i] = 20*log10(|src[(i+N/2) mod N]|)
//
// so that the zero-frequency bin lands in the middle of dst.
func Magnitude(dst []float64, src []complex128) {
	n := len(src)
	m := n / 2
	for i := 0; i < n; i++ {
		j := (i + m) % n
		dst[i] = 20 * math.Log10(cmplx.Abs(src[j]))
	}
}

// L1Norm returns the mean of |re|+|im| over the block.
func L1Norm(block []complex128) float64 {
	var sum float64
	for _, v := range block {
		sum += math.Abs(real(v)) + math.Abs(imag(v))
	}
	return sum / float64(len(block))
}
