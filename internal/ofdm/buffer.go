package ofdm

// ringBuffer is a bounded accumulator for the null power dip search. Pushes
// past capacity overwrite the oldest samples, so it always holds the most
// recent cap samples.
type ringBuffer struct {
	data   []complex128
	index  int // next write position
	length int
}

func newRingBuffer(data []complex128) *ringBuffer {
	return &ringBuffer{data: data}
}

func (b *ringBuffer) push(src []complex128) {
	for _, v := range src {
		b.data[b.index] = v
		b.index = (b.index + 1) % len(b.data)
		if b.length < len(b.data) {
			b.length++
		}
	}
}

func (b *ringBuffer) len() int { return b.length }

// at returns the i-th stored sample, oldest first.
func (b *ringBuffer) at(i int) complex128 {
	start := (b.index - b.length + len(b.data)) % len(b.data)
	return b.data[(start+i)%len(b.data)]
}

func (b *ringBuffer) reset() {
	b.index = 0
	b.length = 0
}

// segmentBuffer accumulates a fixed-capacity contiguous capture, consuming
// some prefix of each offered chunk until full.
type segmentBuffer struct {
	data   []complex128
	length int
}

func newSegmentBuffer(data []complex128) *segmentBuffer {
	return &segmentBuffer{data: data}
}

// consume appends as much of src as fits and returns the number of samples
// taken.
func (b *segmentBuffer) consume(src []complex128) int {
	n := copy(b.data[b.length:], src)
	b.length += n
	return n
}

func (b *segmentBuffer) full() bool { return b.length == len(b.data) }

func (b *segmentBuffer) setLength(n int) { b.length = n }

// frameBuffer holds one whole frame laid out as NumSymbols symbol periods
// followed by the trailing null period, so the ingest path can hand a
// completely filled buffer to the pipeline in one pointer swap.
type frameBuffer struct {
	params Params
	data   []complex128 // NumSymbols*SymbolLen + NullLen
	length int
}

func newFrameBuffer(params Params, data []complex128) *frameBuffer {
	return &frameBuffer{params: params, data: data}
}

func (b *frameBuffer) consume(src []complex128) int {
	n := copy(b.data[b.length:], src)
	b.length += n
	return n
}

func (b *frameBuffer) full() bool { return b.length == len(b.data) }

func (b *frameBuffer) reset() { b.length = 0 }

// symbol returns the i-th symbol period. Index NumSymbols addresses the
// trailing null, which is shorter than a symbol period.
func (b *frameBuffer) symbol(i int) []complex128 {
	start := i * b.params.SymbolLen
	if i == b.params.NumSymbols {
		return b.data[start:]
	}
	return b.data[start : start+b.params.SymbolLen]
}

// nullSymbol returns the trailing null period.
func (b *frameBuffer) nullSymbol() []complex128 {
	return b.data[b.params.NumSymbols*b.params.SymbolLen:]
}
