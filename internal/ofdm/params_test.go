package ofdm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeParams(t *testing.T) {
	for _, tc := range []struct {
		mode             TransmissionMode
		symbols, fft, cp int
		null, carriers   int
	}{
		{ModeI, 76, 2048, 504, 2656, 1536},
		{ModeII, 76, 512, 126, 664, 384},
		{ModeIII, 153, 256, 63, 345, 192},
		{ModeIV, 76, 1024, 252, 1328, 768},
	} {
		p, err := ModeParams(tc.mode)
		require.NoError(t, err, "mode %s", tc.mode)
		assert.Equal(t, tc.symbols, p.NumSymbols)
		assert.Equal(t, tc.fft, p.FFTSize)
		assert.Equal(t, tc.cp, p.CPLen)
		assert.Equal(t, tc.null, p.NullLen)
		assert.Equal(t, tc.carriers, p.NumCarriers)
		assert.Equal(t, p.FFTSize+p.CPLen, p.SymbolLen)
		assert.Equal(t, 3*p.FFTSize/4, p.NumCarriers)
		assert.Equal(t, p.NullLen+p.NumSymbols*p.SymbolLen, p.FrameLen())
		assert.Equal(t, (p.NumSymbols-1)*p.NumCarriers*2, p.FrameBits())
		// The trailing null is transformed like a symbol, so a whole symbol
		// period must fit inside the null period.
		assert.GreaterOrEqual(t, p.NullLen, p.SymbolLen)
	}
}

func TestModeParams_Unknown(t *testing.T) {
	_, err := ModeParams(TransmissionMode(9))
	require.Error(t, err)
}

func TestModeParams_FrameDuration(t *testing.T) {
	// Modes I..IV occupy 96, 24, 24 and 48 ms at 2.048 MS/s.
	for mode, ms := range map[TransmissionMode]float64{
		ModeI:   96,
		ModeII:  24,
		ModeIII: 24,
		ModeIV:  48,
	} {
		p, err := ModeParams(mode)
		require.NoError(t, err)
		got := float64(p.FrameLen()) / SampleRate * 1000
		assert.InDelta(t, ms, got, 1e-9, "mode %s", mode)
	}
}
