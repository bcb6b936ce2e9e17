// Package ofdm implements the OFDM synchronization and demodulation engine of
// the receiver: frame acquisition, coarse/fine frequency correction, fine
// time correlation against the phase reference symbol, and a multi-goroutine
// per-symbol FFT + differential-demodulation pipeline that emits soft
// decision bits for the channel decoder.
package ofdm

import "fmt"

// SampleRate is the fixed baseband sample rate of the transmission.
const SampleRate = 2.048e6

// TransmissionMode selects one of the four standardized parameter sets.
type TransmissionMode int

const (
	ModeI TransmissionMode = iota + 1
	ModeII
	ModeIII
	ModeIV
)

// String returns the roman-numeral name of the mode.
func (m TransmissionMode) String() string {
	switch m {
	case ModeI:
		return "I"
	case ModeII:
		return "II"
	case ModeIII:
		return "III"
	case ModeIV:
		return "IV"
	default:
		return "Unknown"
	}
}

// Params are the immutable OFDM dimensions of one transmission mode.
type Params struct {
	Mode        TransmissionMode
	NumSymbols  int // symbols per frame, PRS included
	FFTSize     int // carriers per symbol before zero padding removal
	CPLen       int // cyclic prefix samples
	SymbolLen   int // FFTSize + CPLen
	NullLen     int // null symbol samples
	NumCarriers int // data carriers per symbol
}

var modeParams = map[TransmissionMode]Params{
	ModeI:   {Mode: ModeI, NumSymbols: 76, FFTSize: 2048, CPLen: 504, SymbolLen: 2552, NullLen: 2656, NumCarriers: 1536},
	ModeII:  {Mode: ModeII, NumSymbols: 76, FFTSize: 512, CPLen: 126, SymbolLen: 638, NullLen: 664, NumCarriers: 384},
	ModeIII: {Mode: ModeIII, NumSymbols: 153, FFTSize: 256, CPLen: 63, SymbolLen: 319, NullLen: 345, NumCarriers: 192},
	ModeIV:  {Mode: ModeIV, NumSymbols: 76, FFTSize: 1024, CPLen: 252, SymbolLen: 1276, NullLen: 1328, NumCarriers: 768},
}

// ModeParams returns the parameter set of a transmission mode.
func ModeParams(mode TransmissionMode) (Params, error) {
	p, ok := modeParams[mode]
	if !ok {
		return Params{}, fmt.Errorf("unknown transmission mode %d", int(mode))
	}
	return p, nil
}

// FrameLen returns the samples in one whole frame: the null symbol followed
// by NumSymbols symbol periods (the PRS, then NumSymbols-1 data symbols).
func (p Params) FrameLen() int {
	return p.NullLen + p.NumSymbols*p.SymbolLen
}

// FrameBits returns the soft bits produced per frame. The PRS carries no
// payload, so only NumSymbols-1 differential transitions yield bits.
func (p Params) FrameBits() int {
	return (p.NumSymbols - 1) * p.NumCarriers * 2
}
