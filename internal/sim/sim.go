// Package sim provides the pieces of the transmitter simulator that are not
// OFDM: the payload scrambler, carrier shifting, and the 8-bit IQ sample
// format used by rtl-sdr style sources.
package sim

import "math"

// ScramblerSyncword seeds the scrambler shift register.
const ScramblerSyncword uint16 = 0b0000000010101001

// Scrambler is the 16-bit feedback shift register that generates the
// placeholder payload of the simulated transmission.
type Scrambler struct {
	reg uint16
}

// NewScrambler returns a scrambler in its reset state.
func NewScrambler() *Scrambler {
	s := &Scrambler{}
	s.Reset()
	return s
}

// Reset reloads the syncword.
func (s *Scrambler) Reset() {
	s.reg = ScramblerSyncword
}

// Next produces the next scrambled byte.
func (s *Scrambler) Next() byte {
	v := byte(((s.reg ^ (s.reg << 1)) >> 8) & 0xFF)
	s.reg = s.reg<<8 | uint16(v)
	return v
}

// Fill writes successive scrambled bytes into dst.
func (s *Scrambler) Fill(dst []byte) {
	for i := range dst {
		dst[i] = s.Next()
	}
}

// ApplyFrequencyShift rotates src by a carrier offset in Hz at the given
// sample rate. dst and src may be the same slice.
func ApplyFrequencyShift(dst, src []complex128, freqHz, sampleRate float64) {
	step := 2 * math.Pi * freqHz / sampleRate
	for i, v := range src {
		sin, cos := math.Sincos(step * float64(i))
		dst[i] = v * complex(cos, sin)
	}
}

// QuantizeIQ8 packs complex samples into interleaved offset-128 8-bit IQ
// after scaling. dst must hold 2*len(src) bytes.
func QuantizeIQ8(dst []byte, src []complex128, scale float64) {
	for i, v := range src {
		dst[2*i] = quantize8(real(v) * scale)
		dst[2*i+1] = quantize8(imag(v) * scale)
	}
}

// DequantizeIQ8 unpacks interleaved offset-128 8-bit IQ into complex samples
// in [-1, 1). dst must hold len(src)/2 samples.
func DequantizeIQ8(dst []complex128, src []byte) int {
	n := len(src) / 2
	for i := 0; i < n; i++ {
		dst[i] = complex(
			(float64(src[2*i])-128)/128,
			(float64(src[2*i+1])-128)/128,
		)
	}
	return n
}

func quantize8(x float64) byte {
	v := x + 128
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
