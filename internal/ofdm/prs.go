package ofdm

import (
	"math"
	"math/cmplx"
)

// The phase reference symbol fixes the phase of every active carrier at the
// start of a frame. Carrier k in [-C/2, C/2]\{0} gets the unit phasor
//
//	z_k = exp(j * pi/2 * (h[i][k-k'] + n))
//
// where (k', i, n) come from the per-mode block table and h is the fixed
// 4x32 index table.
var prsH = [4][32]int{
	{0, 2, 0, 0, 0, 0, 1, 1, 2, 0, 0, 0, 2, 2, 1, 1, 0, 2, 0, 0, 0, 0, 1, 1, 2, 0, 0, 0, 2, 2, 1, 1},
	{0, 3, 2, 3, 0, 1, 3, 0, 2, 1, 2, 3, 2, 3, 3, 0, 0, 3, 2, 3, 0, 1, 3, 0, 2, 1, 2, 3, 2, 3, 3, 0},
	{0, 0, 0, 2, 0, 2, 1, 3, 2, 2, 0, 2, 2, 0, 1, 3, 0, 0, 0, 2, 0, 2, 1, 3, 2, 2, 0, 2, 2, 0, 1, 3},
	{0, 1, 2, 1, 0, 3, 3, 2, 2, 3, 2, 1, 2, 1, 3, 2, 0, 1, 2, 1, 0, 3, 3, 2, 2, 3, 2, 1, 2, 1, 3, 2},
}

// prsBlock covers carriers [kMin, kMax] with table row i and phase offset n.
// kMin doubles as k'.
type prsBlock struct {
	kMin, kMax int
	i, n       int
}

var prsBlocks = map[TransmissionMode][]prsBlock{
	ModeI: {
		{-768, -737, 0, 1}, {-736, -705, 1, 2}, {-704, -673, 2, 0}, {-672, -641, 3, 1},
		{-640, -609, 0, 3}, {-608, -577, 1, 2}, {-576, -545, 2, 2}, {-544, -513, 3, 3},
		{-512, -481, 0, 2}, {-480, -449, 1, 1}, {-448, -417, 2, 2}, {-416, -385, 3, 3},
		{-384, -353, 0, 1}, {-352, -321, 1, 2}, {-320, -289, 2, 3}, {-288, -257, 3, 3},
		{-256, -225, 0, 2}, {-224, -193, 1, 2}, {-192, -161, 2, 2}, {-160, -129, 3, 1},
		{-128, -97, 0, 1}, {-96, -65, 1, 3}, {-64, -33, 2, 1}, {-32, -1, 3, 2},
		{1, 32, 0, 3}, {33, 64, 3, 1}, {65, 96, 2, 1}, {97, 128, 1, 1},
		{129, 160, 0, 2}, {161, 192, 3, 2}, {193, 224, 2, 1}, {225, 256, 1, 0},
		{257, 288, 0, 2}, {289, 320, 3, 2}, {321, 352, 2, 3}, {353, 384, 1, 3},
		{385, 416, 0, 0}, {417, 448, 3, 2}, {449, 480, 2, 1}, {481, 512, 1, 3},
		{513, 544, 0, 3}, {545, 576, 3, 3}, {577, 608, 2, 3}, {609, 640, 1, 0},
		{641, 672, 0, 3}, {673, 704, 3, 0}, {705, 736, 2, 1}, {737, 768, 1, 1},
	},
	ModeII: {
		{-192, -161, 0, 2}, {-160, -129, 1, 3}, {-128, -97, 2, 2}, {-96, -65, 3, 2},
		{-64, -33, 0, 1}, {-32, -1, 1, 2},
		{1, 32, 2, 0}, {33, 64, 1, 2}, {65, 96, 0, 2}, {97, 128, 3, 1},
		{129, 160, 2, 0}, {161, 192, 1, 3},
	},
	ModeIII: {
		{-96, -65, 0, 2}, {-64, -33, 1, 3}, {-32, -1, 2, 0},
		{1, 32, 3, 2}, {33, 64, 2, 2}, {65, 96, 1, 2},
	},
	ModeIV: {
		{-384, -353, 0, 0}, {-352, -321, 1, 1}, {-320, -289, 2, 1}, {-288, -257, 3, 2},
		{-256, -225, 0, 2}, {-224, -193, 1, 2}, {-192, -161, 2, 0}, {-160, -129, 3, 3},
		{-128, -97, 0, 3}, {-96, -65, 1, 1}, {-64, -33, 2, 3}, {-32, -1, 3, 2},
		{1, 32, 0, 0}, {33, 64, 3, 1}, {65, 96, 2, 0}, {97, 128, 1, 2},
		{129, 160, 0, 0}, {161, 192, 3, 1}, {193, 224, 2, 2}, {225, 256, 1, 2},
		{257, 288, 0, 2}, {289, 320, 3, 1}, {321, 352, 2, 3}, {353, 384, 1, 0},
	},
}

// NewPRSReference builds the frequency-domain phase reference symbol for the
// given parameter set, in FFT bin order. Inactive bins, including DC, are
// zero.
func NewPRSReference(p Params) []complex128 {
	ref := make([]complex128, p.FFTSize)
	for _, b := range prsBlocks[p.Mode] {
		for k := b.kMin; k <= b.kMax; k++ {
			if k == 0 {
				continue
			}
			phi := math.Pi / 2 * float64(prsH[b.i][k-b.kMin]+b.n)
			bin := (p.FFTSize + k) % p.FFTSize
			ref[bin] = cmplx.Exp(complex(0, phi))
		}
	}
	return ref
}
