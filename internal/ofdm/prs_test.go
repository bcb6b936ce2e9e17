package ofdm

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestNewPRSReference_ActiveCarriers(t *testing.T) {
	for _, mode := range []TransmissionMode{ModeI, ModeII, ModeIII, ModeIV} {
		p, _ := ModeParams(mode)
		ref := NewPRSReference(p)
		if len(ref) != p.FFTSize {
			t.Fatalf("mode %s: length %d, want %d", mode, len(ref), p.FFTSize)
		}

		half := p.NumCarriers / 2
		active := 0
		for k := -p.FFTSize / 2; k < p.FFTSize/2; k++ {
			bin := (p.FFTSize + k) % p.FFTSize
			v := ref[bin]
			inBand := k != 0 && k >= -half && k <= half
			if inBand {
				if math.Abs(cmplx.Abs(v)-1) > 1e-12 {
					t.Errorf("mode %s: carrier %d magnitude %v, want 1", mode, k, cmplx.Abs(v))
				}
				active++
			} else if v != 0 {
				t.Errorf("mode %s: bin for carrier %d should be zero, got %v", mode, k, v)
			}
		}
		if active != p.NumCarriers {
			t.Errorf("mode %s: %d active carriers, want %d", mode, active, p.NumCarriers)
		}
	}
}

func TestNewPRSReference_QuarterPhases(t *testing.T) {
	// Every reference phasor is a quarter-turn multiple.
	p, _ := ModeParams(ModeI)
	ref := NewPRSReference(p)
	for bin, v := range ref {
		if v == 0 {
			continue
		}
		phase := cmplx.Phase(v) / (math.Pi / 2)
		if math.Abs(phase-math.Round(phase)) > 1e-9 {
			t.Fatalf("bin %d: phase %v is not a multiple of pi/2", bin, cmplx.Phase(v))
		}
	}
}
