package ofdm

import (
	"fmt"
	"math"

	"github.com/AlwinEsch/DAB-Radio/internal/dsp"
)

// Modulator synthesizes baseband OFDM frames: a silent null period, the
// phase reference symbol, then differentially encoded data symbols. It is
// the exact inverse of the demodulator's demapper and exists for the
// transmitter simulator and the loopback tests.
type Modulator struct {
	params Params
	mapper []int
	fft    *dsp.FFT

	prsFreq  []complex128
	prsTime  []complex128 // PRS symbol period with cyclic prefix
	lastFreq []complex128 // previous symbol spectrum, differential state
	currFreq []complex128
	phaseVec []complex128
	timeBuf  []complex128
}

// NewModulator builds a modulator sharing the demodulator's reference
// tables.
func NewModulator(params Params, prsRef []complex128, carrierMapper []int) (*Modulator, error) {
	if len(prsRef) != params.FFTSize {
		return nil, fmt.Errorf("prs reference length %d, want %d", len(prsRef), params.FFTSize)
	}
	if len(carrierMapper) != params.NumCarriers {
		return nil, fmt.Errorf("carrier mapper length %d, want %d", len(carrierMapper), params.NumCarriers)
	}

	m := &Modulator{
		params:   params,
		mapper:   append([]int(nil), carrierMapper...),
		fft:      dsp.NewFFT(params.FFTSize),
		prsFreq:  append([]complex128(nil), prsRef...),
		lastFreq: make([]complex128, params.FFTSize),
		currFreq: make([]complex128, params.FFTSize),
		phaseVec: make([]complex128, params.NumCarriers),
		timeBuf:  make([]complex128, params.FFTSize),
	}

	m.prsTime = make([]complex128, params.SymbolLen)
	m.fft.Inverse(m.timeBuf, m.prsFreq)
	scale := complex(1/float64(params.FFTSize), 0)
	for i := range m.timeBuf {
		m.timeBuf[i] *= scale
	}
	copy(m.prsTime[:params.CPLen], m.timeBuf[params.FFTSize-params.CPLen:])
	copy(m.prsTime[params.CPLen:], m.timeBuf)
	return m, nil
}

// ProcessBlock writes one whole frame into out from the payload bytes,
// most significant bit first. out must hold FrameLen samples and payload
// FrameBits/8 bytes.
func (m *Modulator) ProcessBlock(out []complex128, payload []byte) error {
	p := m.params
	if len(out) != p.FrameLen() {
		return fmt.Errorf("output length %d, want %d", len(out), p.FrameLen())
	}
	if len(payload)*8 != p.FrameBits() {
		return fmt.Errorf("payload length %d bytes, want %d", len(payload), p.FrameBits()/8)
	}

	for i := range out[:p.NullLen] {
		out[i] = 0
	}
	copy(out[p.NullLen:], m.prsTime)
	copy(m.lastFreq, m.prsFreq)

	bitsPerSymbol := p.NumCarriers * 2
	scale := complex(1/float64(p.FFTSize), 0)
	for s := 1; s < p.NumSymbols; s++ {
		m.encodeSymbol(payload, (s-1)*bitsPerSymbol)

		dst := out[p.NullLen+s*p.SymbolLen:][:p.SymbolLen]
		m.fft.Inverse(m.timeBuf, m.currFreq)
		for i := range m.timeBuf {
			m.timeBuf[i] *= scale
		}
		copy(dst[:p.CPLen], m.timeBuf[p.FFTSize-p.CPLen:])
		copy(dst[p.CPLen:], m.timeBuf)

		m.lastFreq, m.currFreq = m.currFreq, m.lastFreq
	}
	return nil
}

// encodeSymbol interleaves one symbol worth of bits onto the active carriers
// and rotates each carrier of the previous spectrum by the selected QPSK
// phase. The phase selector is unit magnitude so carrier levels stay fixed
// along the differential chain.
func (m *Modulator) encodeSymbol(payload []byte, bitOffset int) {
	p := m.params
	n := p.NumCarriers
	norm := 1 / math.Sqrt2
	for i := 0; i < n; i++ {
		b0 := payloadBit(payload, bitOffset+i)
		b1 := payloadBit(payload, bitOffset+n+i)
		m.phaseVec[m.mapper[i]] = complex(float64(1-2*b0)*norm, float64(2*b1-1)*norm)
	}

	for i := range m.currFreq {
		m.currFreq[i] = 0
	}
	half := n / 2
	idx := 0
	for k := -half; k <= half; k++ {
		if k == 0 {
			continue
		}
		bin := (p.FFTSize + k) % p.FFTSize
		m.currFreq[bin] = m.lastFreq[bin] * m.phaseVec[idx]
		idx++
	}
}

func payloadBit(payload []byte, i int) int {
	return int(payload[i/8]>>(7-i%8)) & 1
}
