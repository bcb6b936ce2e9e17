package dsp

import "gonum.org/v1/gonum/dsp/fourier"

// FFT is a fixed-size complex transform plan. Both directions are
// unnormalized, so Inverse(Forward(x)) multiplies x by the transform length.
//
// A plan carries scratch state and is NOT safe for concurrent use; allocate
// one per goroutine that transforms.
type FFT struct {
	n    int
	plan *fourier.CmplxFFT
}

// NewFFT builds a transform plan of the given length.
func NewFFT(n int) *FFT {
	return &FFT{n: n, plan: fourier.NewCmplxFFT(n)}
}

// Len returns the transform length.
func (t *FFT) Len() int { return t.n }

// Forward computes the forward DFT of src into dst. dst and src may be the
// same slice; src may be longer than the plan, in which case only the first
// Len samples are transformed.
func (t *FFT) Forward(dst, src []complex128) {
	t.plan.Coefficients(dst[:t.n], src[:t.n])
}

// Inverse computes the unnormalized inverse DFT of src into dst. dst and src
// may be the same slice.
func (t *FFT) Inverse(dst, src []complex128) {
	t.plan.Sequence(dst[:t.n], src[:t.n])
}
