package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"pgregory.net/rapid"
)

func TestApplyPLL_ZeroFreq(t *testing.T) {
	x := []complex128{1, 1i, -1, -1i}
	y := make([]complex128, len(x))
	ApplyPLL(y, x, 0, 0)
	for i := range x {
		if cmplx.Abs(y[i]-x[i]) > 1e-12 {
			t.Errorf("sample %d: %v != %v", i, y[i], x[i])
		}
	}
}

func TestApplyPLL_QuarterCycle(t *testing.T) {
	// freq = 0.25 advances the oscillator by 90 degrees per sample.
	x := []complex128{1, 1, 1, 1, 1}
	y := make([]complex128, len(x))
	ApplyPLL(y, x, 0.25, 0)
	want := []complex128{1, 1i, -1, -1i, 1}
	for i := range want {
		if cmplx.Abs(y[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: got %v, want %v", i, y[i], want[i])
		}
	}
}

func TestApplyPLL_InverseRecovers(t *testing.T) {
	// Rotating forward and back by any sub-bin frequency must return the
	// original samples.
	const n = 256
	rapid.Check(t, func(t *rapid.T) {
		freq := rapid.Float64Range(-0.5/n, 0.5/n).Draw(t, "freq")
		x := make([]complex128, n)
		for i := range x {
			x[i] = complex(
				rapid.Float64Range(-1, 1).Draw(t, "re"),
				rapid.Float64Range(-1, 1).Draw(t, "im"),
			)
		}
		y := make([]complex128, n)
		ApplyPLL(y, x, freq, 0)
		ApplyPLL(y, y, -freq, 0)
		for i := range x {
			if cmplx.Abs(y[i]-x[i]) > 1e-5*(1+cmplx.Abs(x[i])) {
				t.Fatalf("sample %d: got %v, want %v", i, y[i], x[i])
			}
		}
	})
}

func TestConjMulSum(t *testing.T) {
	a := []complex128{1 + 1i, 2}
	b := []complex128{1 - 1i, 3i}
	// conj(1+1i)*(1-1i) + conj(2)*3i = (1-1i)^2 + 6i = -2i + 6i = 4i
	got := ConjMulSum(a, b)
	if cmplx.Abs(got-4i) > 1e-12 {
		t.Errorf("got %v, want 4i", got)
	}
}

func TestConjMulSum_SelfIsPower(t *testing.T) {
	a := []complex128{1 + 2i, -3, 4i}
	got := ConjMulSum(a, a)
	var power float64
	for _, v := range a {
		power += real(v)*real(v) + imag(v)*imag(v)
	}
	if math.Abs(real(got)-power) > 1e-12 || math.Abs(imag(got)) > 1e-12 {
		t.Errorf("got %v, want %v", got, power)
	}
}

func TestMagnitude_Shifted(t *testing.T) {
	// A single unit at DC must land in the middle of the shifted spectrum
	// at 0 dB.
	n := 8
	src := make([]complex128, n)
	src[0] = 1
	dst := make([]float64, n)
	Magnitude(dst, src)
	if math.Abs(dst[n/2]) > 1e-12 {
		t.Errorf("dst[%d] = %v, want 0 dB", n/2, dst[n/2])
	}
	for i, v := range dst {
		if i != n/2 && !math.IsInf(v, -1) {
			t.Errorf("dst[%d] = %v, want -Inf", i, v)
		}
	}
}

func TestFFT_InverseRoundTrip(t *testing.T) {
	// Both directions are unnormalized, so a round trip scales by N.
	n := 256
	plan := NewFFT(n)
	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(math.Sin(2*math.Pi*3*float64(i)/float64(n)), float64(i)/float64(n))
	}
	y := make([]complex128, n)
	z := make([]complex128, n)
	plan.Forward(y, x)
	plan.Inverse(z, y)
	for i := range x {
		want := x[i] * complex(float64(n), 0)
		if cmplx.Abs(z[i]-want) > 1e-6 {
			t.Fatalf("sample %d: got %v, want %v", i, z[i], want)
		}
	}
}

func TestFFT_SingleTone(t *testing.T) {
	n := 64
	plan := NewFFT(n)
	x := make([]complex128, n)
	for i := range x {
		phi := 2 * math.Pi * 5 * float64(i) / float64(n)
		x[i] = cmplx.Exp(complex(0, phi))
	}
	y := make([]complex128, n)
	plan.Forward(y, x)
	for i := range y {
		want := 0.0
		if i == 5 {
			want = float64(n)
		}
		if math.Abs(cmplx.Abs(y[i])-want) > 1e-9 {
			t.Errorf("bin %d: |%v|, want %v", i, y[i], want)
		}
	}
}

func TestL1Norm(t *testing.T) {
	block := []complex128{3 + 4i, -1 - 1i}
	got := L1Norm(block)
	if math.Abs(got-4.5) > 1e-12 {
		t.Errorf("got %v, want 4.5", got)
	}
}
