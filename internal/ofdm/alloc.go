package ofdm

import (
	"unsafe"

	"github.com/klauspost/cpuid/v2"
)

// All DSP buffers of a demodulator live in one joint allocation, both for
// locality and so FFT input slices meet the widest SIMD alignment the host
// offers: 32 bytes when AVX is available, 16 otherwise.

func bufferAlignment() int {
	if cpuid.CPU.Supports(cpuid.AVX) {
		return 32
	}
	return 16
}

// jointAlloc carves aligned sub-slices out of a single byte slab. Run it
// once with a nil slab to measure, then again over the allocation.
type jointAlloc struct {
	slab  []byte
	base  uintptr
	off   int
	align int
}

func newJointAlloc(align int) *jointAlloc {
	return &jointAlloc{align: align}
}

func (a *jointAlloc) alignUp() {
	if rem := (int(a.base) + a.off) % a.align; rem != 0 {
		a.off += a.align - rem
	}
}

func (a *jointAlloc) carve(size int) unsafe.Pointer {
	a.alignUp()
	var p unsafe.Pointer
	if a.slab != nil {
		p = unsafe.Pointer(&a.slab[a.off])
	}
	a.off += size
	return p
}

// size returns the bytes measured so far plus headroom for the base offset.
func (a *jointAlloc) size() int { return a.off + a.align }

// use points the allocator at its backing slab and restarts carving.
func (a *jointAlloc) use(slab []byte) {
	a.slab = slab
	a.base = uintptr(unsafe.Pointer(&slab[0]))
	a.off = 0
}

func (a *jointAlloc) complexSlice(n int) []complex128 {
	p := a.carve(n * 16)
	if p == nil {
		return nil
	}
	return unsafe.Slice((*complex128)(p), n)
}

func (a *jointAlloc) floatSlice(n int) []float64 {
	p := a.carve(n * 8)
	if p == nil {
		return nil
	}
	return unsafe.Slice((*float64)(p), n)
}

func (a *jointAlloc) softSlice(n int) []SoftBit {
	p := a.carve(n)
	if p == nil {
		return nil
	}
	return unsafe.Slice((*SoftBit)(p), n)
}
