package ofdm

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"
	"sync/atomic"

	"github.com/AlwinEsch/DAB-Radio/internal/dsp"
)

// SoftBit is a soft decision value for the channel decoder: the sign carries
// the hard decision, the magnitude the confidence.
type SoftBit int8

// SoftDecisionHigh is the full-confidence soft bit magnitude.
const SoftDecisionHigh = 127

// State is the acquisition state of the demodulator.
type State int32

const (
	StateFindNullPowerDip State = iota
	StateReadNullPRS
	StateCoarseFreqSync
	StateFineTimeSync
	StateReadSymbols
)

// String names the state for diagnostics.
func (s State) String() string {
	switch s {
	case StateFindNullPowerDip:
		return "FIND_NULL"
	case StateReadNullPRS:
		return "READ_NULL_PRS"
	case StateCoarseFreqSync:
		return "COARSE_FREQ"
	case StateFineTimeSync:
		return "FINE_TIME"
	case StateReadSymbols:
		return "READ_SYMBOLS"
	default:
		return "UNKNOWN"
	}
}

// Demodulator turns a stream of baseband complex samples into per-frame soft
// bit blocks. One goroutine owns Process; a coordinator goroutine and a set
// of pipeline workers do the per-symbol demodulation behind a double
// buffered ingest, so Process never blocks on the FFT work of the previous
// frame except at the frame boundary itself.
type Demodulator struct {
	params Params
	cfg    Config

	carrierMapper []int
	prsFFTRef     []complex128 // conj of the PRS spectrum, for fine time correlation
	prsTimeRef    []complex128 // conj of IFFT of the PRS relative phase, for coarse freq correlation

	slab []byte // joint allocation backing every DSP buffer below

	state atomic.Int32

	nullDip        *ringBuffer
	corr           *segmentBuffer
	nullStartFound bool
	nullEndFound   bool
	signalAverage  atomic.Uint64 // float64 bits

	fft      *dsp.FFT // acquisition path plan; workers own their own
	corrFFT  []complex128
	corrIFFT []complex128

	diagMu          sync.Mutex
	impulseResponse []float64
	freqResponse    []float64

	offsetMu    sync.Mutex
	freqCoarse  float64
	freqFine    float64
	coarseFound bool

	fineTimeOffset atomic.Int64

	active   atomic.Pointer[frameBuffer]
	inactive *frameBuffer

	fftBuffer []complex128 // (NumSymbols+1) * FFTSize
	dqpskVec  []complex128 // (NumSymbols-1) * NumCarriers
	outBits   []SoftBit    // (NumSymbols-1) * NumCarriers * 2

	workers    []*pipelineWorker
	coordStart gate
	coordEnd   gate
	coordStop  chan struct{}
	coordWg    sync.WaitGroup
	workerWg   sync.WaitGroup

	totalFramesRead   atomic.Uint64
	totalFramesDesync atomic.Uint64

	frameHandlers []func([]SoftBit)
}

// NewDemodulator builds a demodulator for one parameter set. prsRef is the
// frequency-domain phase reference symbol and carrierMapper the deinterleave
// permutation, both as produced by NewPRSReference and NewCarrierMapper.
// numThreads caps the pipeline worker count; zero or less picks one worker
// per spare CPU.
func NewDemodulator(params Params, prsRef []complex128, carrierMapper []int, cfg Config, numThreads int) (*Demodulator, error) {
	if len(prsRef) != params.FFTSize {
		return nil, fmt.Errorf("prs reference length %d, want %d", len(prsRef), params.FFTSize)
	}
	if len(carrierMapper) != params.NumCarriers {
		return nil, fmt.Errorf("carrier mapper length %d, want %d", len(carrierMapper), params.NumCarriers)
	}

	d := &Demodulator{
		params:        params,
		cfg:           cfg,
		carrierMapper: append([]int(nil), carrierMapper...),
		fft:           dsp.NewFFT(params.FFTSize),
		coordStart:    newGate(),
		coordEnd:      newGate(),
		coordStop:     make(chan struct{}),
	}
	d.allocateBuffers()

	// Correlation in the time domain is a conjugate product in the frequency
	// domain, so both references are stored pre-conjugated.
	for i, v := range prsRef {
		d.prsFFTRef[i] = cmplx.Conj(v)
	}
	relativePhase(d.prsTimeRef, prsRef)
	d.fft.Inverse(d.prsTimeRef, d.prsTimeRef)
	for i, v := range d.prsTimeRef {
		d.prsTimeRef[i] = cmplx.Conj(v)
	}

	d.state.Store(int32(StateFindNullPowerDip))
	// The first frame has no predecessor to wait for.
	d.coordEnd.signal()
	d.startPipeline(numThreads)
	return d, nil
}

// allocateBuffers carves every DSP buffer out of one aligned slab. The first
// pass over a nil slab only measures.
func (d *Demodulator) allocateBuffers() {
	p := d.params
	frameSamples := p.NumSymbols*p.SymbolLen + p.NullLen

	a := newJointAlloc(bufferAlignment())
	var nullDipData, corrData, activeData, inactiveData []complex128
	carve := func() {
		nullDipData = a.complexSlice(p.NullLen)
		corrData = a.complexSlice(p.NullLen + p.SymbolLen)
		d.prsFFTRef = a.complexSlice(p.FFTSize)
		d.prsTimeRef = a.complexSlice(p.FFTSize)
		d.impulseResponse = a.floatSlice(p.FFTSize)
		d.freqResponse = a.floatSlice(p.FFTSize)
		d.corrFFT = a.complexSlice(p.FFTSize)
		d.corrIFFT = a.complexSlice(p.FFTSize)
		activeData = a.complexSlice(frameSamples)
		inactiveData = a.complexSlice(frameSamples)
		d.fftBuffer = a.complexSlice((p.NumSymbols + 1) * p.FFTSize)
		d.dqpskVec = a.complexSlice((p.NumSymbols - 1) * p.NumCarriers)
		d.outBits = a.softSlice(p.FrameBits())
	}
	carve()
	d.slab = make([]byte, a.size())
	a.use(d.slab)
	carve()

	d.nullDip = newRingBuffer(nullDipData)
	d.corr = newSegmentBuffer(corrData)
	d.active.Store(newFrameBuffer(p, activeData))
	d.inactive = newFrameBuffer(p, inactiveData)
}

// Close stops the coordinator, then the workers, and joins them. In-flight
// frame processing completes first; no mid-frame cancellation exists.
func (d *Demodulator) Close() {
	close(d.coordStop)
	d.coordWg.Wait()
	for _, w := range d.workers {
		close(w.stop)
	}
	d.workerWg.Wait()
}

// SubscribeOnFrame registers a callback invoked with each completed soft bit
// block. The callback runs on the coordinator goroutine and must not block;
// the slice is only valid until it returns. Subscribe before the first
// Process call.
func (d *Demodulator) SubscribeOnFrame(fn func([]SoftBit)) {
	d.frameHandlers = append(d.frameHandlers, fn)
}

// Process consumes a chunk of baseband samples, advancing the acquisition
// state machine as far as the chunk allows. Chunks may have any size; frame
// boundaries need not be respected.
func (d *Demodulator) Process(samples []complex128) {
	d.updateSignalAverage(samples)
	idx := 0
	for idx < len(samples) {
		block := samples[idx:]
		switch State(d.state.Load()) {
		case StateFindNullPowerDip:
			idx += d.findNullPowerDip(block)
		case StateReadNullPRS:
			idx += d.readNullPRS(block)
		case StateCoarseFreqSync:
			idx += d.runCoarseFreqSync()
		case StateFineTimeSync:
			idx += d.runFineTimeSync()
		case StateReadSymbols:
			idx += d.readSymbols(block)
		}
	}
}

// reset is the single failure path: back to the null dip search with all
// synchronisation state invalidated, including the correlation capture.
func (d *Demodulator) reset() {
	d.state.Store(int32(StateFindNullPowerDip))
	d.corr.setLength(0)
	d.totalFramesDesync.Add(1)

	// An incorrect fine offset degrades the next impulse response, so both
	// offsets restart from scratch.
	d.offsetMu.Lock()
	d.coarseFound = false
	d.freqCoarse = 0
	d.freqFine = 0
	d.offsetMu.Unlock()
	d.fineTimeOffset.Store(0)
}

// findNullPowerDip scans non-overlapping L1 windows for the power dip of the
// null symbol: first a drop below the start threshold, then the rise past
// the end threshold. Everything scanned lands in the ring so the capture can
// reach back a full null period once the end is seen.
func (d *Demodulator) findNullPowerDip(block []complex128) int {
	k := d.cfg.SignalL1.NbSamples
	avg := d.sigAvg()
	startThresh := avg * d.cfg.NullL1Search.ThreshNullStart
	endThresh := avg * d.cfg.NullL1Search.ThreshNullEnd

	nbRead := len(block)
	for i := 0; i < len(block)-k; i += k {
		l1 := dsp.L1Norm(block[i : i+k])
		if d.nullStartFound {
			if l1 > endThresh {
				d.nullEndFound = true
				nbRead = i + k
				break
			}
		} else if l1 < startThresh {
			d.nullStartFound = true
		}
	}

	d.nullDip.push(block[:nbRead])
	if !d.nullEndFound {
		return nbRead
	}

	// The captured dip may already contain the start of the PRS; seeding the
	// correlation buffer with it guarantees the full PRS is present after
	// fine time sync.
	n := d.nullDip.len()
	for i := 0; i < n; i++ {
		d.corr.data[i] = d.nullDip.at(i)
	}
	d.corr.setLength(n)

	d.nullStartFound = false
	d.nullEndFound = false
	d.nullDip.reset()
	d.state.Store(int32(StateReadNullPRS))
	return nbRead
}

func (d *Demodulator) readNullPRS(block []complex128) int {
	n := d.corr.consume(block)
	if d.corr.full() {
		d.state.Store(int32(StateCoarseFreqSync))
	}
	return n
}

// runCoarseFreqSync estimates the integral frequency offset by correlating
// the relative phase of the received PRS spectrum against the reference.
// Working on consecutive-bin conjugate products makes the correlation
// insensitive to the unknown absolute phase.
func (d *Demodulator) runCoarseFreqSync() int {
	p := d.params
	if !d.cfg.Sync.IsCoarseFreqCorrection {
		d.offsetMu.Lock()
		d.freqCoarse = 0
		d.offsetMu.Unlock()
		d.state.Store(int32(StateFineTimeSync))
		return 0
	}

	prs := d.corr.data[p.NullLen : p.NullLen+p.SymbolLen]
	d.fft.Forward(d.corrFFT, prs)
	relativePhase(d.corrFFT, d.corrFFT)
	d.fft.Inverse(d.corrIFFT, d.corrFFT)
	for i := range d.corrIFFT {
		d.corrIFFT[i] *= d.prsTimeRef[i]
	}
	d.fft.Forward(d.corrFFT, d.corrIFFT)
	d.diagMu.Lock()
	dsp.Magnitude(d.freqResponse, d.corrFFT)
	d.diagMu.Unlock()

	// Zero offset puts the peak at FFTSize/2 in the shifted spectrum.
	maxOffset := int(d.cfg.Sync.MaxCoarseFreqCorrectionNorm * float64(p.FFTSize))
	m := p.FFTSize / 2
	if maxOffset < 0 {
		maxOffset = 0
	}
	if maxOffset > m {
		maxOffset = m
	}
	maxIndex := -maxOffset
	maxValue := d.freqResponse[maxIndex+m]
	for i := -maxOffset; i <= maxOffset; i++ {
		if i+m == p.FFTSize {
			continue
		}
		if v := d.freqResponse[i+m]; v > maxValue {
			maxValue = v
			maxIndex = i
		}
	}

	predicted := -float64(maxIndex) / float64(p.FFTSize)

	d.offsetMu.Lock()
	err := predicted - d.freqCoarse
	// A correction beyond 1.5 bins, or the very first estimate, must land
	// instantly or the PRS impulse will be buried for the fine time step.
	// Near lock the offset may sit between two adjacent bins; the slow update
	// keeps it from oscillating, and the counter-adjusted fine offset keeps
	// the combined correction stable.
	beta := d.cfg.Sync.CoarseFreqSlowBeta
	if math.Abs(err) > 1.5/float64(p.FFTSize) || !d.coarseFound {
		beta = 1
	}
	delta := beta * err
	d.freqCoarse += delta
	d.coarseFound = true
	d.freqFine = wrapFine(d.freqFine-delta, p.FFTSize)
	d.offsetMu.Unlock()

	d.state.Store(int32(StateFineTimeSync))
	return 0
}

// runFineTimeSync locates the exact PRS start by correlating the derotated
// capture against the PRS reference and picking the impulse response peak,
// weighted toward the expected position at the cyclic prefix boundary.
func (d *Demodulator) runFineTimeSync() int {
	p := d.params
	prs := d.corr.data[p.NullLen : p.NullLen+p.SymbolLen]

	freqOffset := d.frequencyOffset()
	copy(d.corrIFFT, prs[:p.FFTSize])
	dsp.ApplyPLL(d.corrIFFT, d.corrIFFT, freqOffset, 0)

	d.fft.Forward(d.corrFFT, d.corrIFFT)
	for i := range d.corrFFT {
		d.corrFFT[i] *= d.prsFFTRef[i]
	}
	d.fft.Inverse(d.corrIFFT, d.corrFFT)

	d.diagMu.Lock()
	for i, v := range d.corrIFFT {
		d.impulseResponse[i] = 20 * math.Log10(cmplx.Abs(v))
	}
	d.diagMu.Unlock()

	// While still locking on, residual frequency error spreads the response
	// over several peaks; weighting by distance from the expected position
	// stops a distant spurious peak from causing a desync.
	decay := 1 - d.cfg.Sync.ImpulsePeakDistanceProbability
	var sum float64
	maxValue := d.impulseResponse[0]
	maxIndex := 0
	for i, v := range d.impulseResponse {
		distance := i - p.CPLen
		if distance < 0 {
			distance = -distance
		}
		weight := 1 - decay*float64(distance)/float64(p.SymbolLen)
		sum += v
		if w := weight * v; w > maxValue {
			maxValue = w
			maxIndex = i
		}
	}
	mean := sum / float64(p.FFTSize)

	if maxValue-mean < d.cfg.Sync.ImpulsePeakThresholdDb {
		d.reset()
		return 0
	}

	// The correlation lobe sits one cyclic prefix into the PRS; rewind to the
	// prefix start and seed the inactive frame buffer from there.
	offset := maxIndex - p.CPLen
	prsStart := p.NullLen + offset
	d.inactive.reset()
	d.inactive.consume(d.corr.data[prsStart : p.NullLen+p.SymbolLen])
	d.corr.setLength(0)
	d.fineTimeOffset.Store(int64(offset))
	d.state.Store(int32(StateReadSymbols))
	return 0
}

// readSymbols fills the inactive frame buffer; once full it swaps buffers
// with the pipeline and stays locked, going straight back to the null/PRS
// capture for the next frame.
func (d *Demodulator) readSymbols(block []complex128) int {
	p := d.params
	n := d.inactive.consume(block)
	if !d.inactive.full() {
		return n
	}

	// The trailing null seeds the next frame's PRS correlation.
	copy(d.corr.data[:p.NullLen], d.inactive.nullSymbol())
	d.corr.setLength(p.NullLen)

	d.coordEnd.waitOnly()
	active := d.active.Load()
	d.active.Store(d.inactive)
	d.inactive = active
	d.inactive.reset()
	d.coordStart.signal()

	d.state.Store(int32(StateReadNullPRS))
	return n
}

// updateSignalAverage feeds decimated L1 windows into the running signal
// level estimate used by the null dip thresholds.
func (d *Demodulator) updateSignalAverage(block []complex128) {
	k := d.cfg.SignalL1.NbSamples
	if len(block) < k {
		return
	}
	stride := k * d.cfg.SignalL1.NbDecimate
	beta := d.cfg.SignalL1.UpdateBeta
	avg := d.sigAvg()
	for i := 0; i < len(block)-k; i += stride {
		avg = beta*avg + (1-beta)*dsp.L1Norm(block[i:i+k])
	}
	d.setSigAvg(avg)
}

// frequencyOffset snapshots the combined coarse and fine offset.
func (d *Demodulator) frequencyOffset() float64 {
	d.offsetMu.Lock()
	defer d.offsetMu.Unlock()
	return d.freqCoarse + d.freqFine
}

// updateFineFrequencyOffset applies a delta under the shared lock. Both the
// ingest path (coarse counter-adjust) and the coordinator (cyclic prefix
// feedback) call this.
func (d *Demodulator) updateFineFrequencyOffset(delta float64) {
	d.offsetMu.Lock()
	d.freqFine = wrapFine(d.freqFine+delta, d.params.FFTSize)
	d.offsetMu.Unlock()
}

// wrapFine keeps the fine offset within half a bin, with a 1% margin so a
// value sitting right on the edge does not flap.
func wrapFine(v float64, fftSize int) float64 {
	bound := 0.5 * 1.01 / float64(fftSize)
	return math.Mod(v, bound)
}

// relativePhase writes the conjugate product of consecutive bins,
// dst[i] = conj(src[i]) * src[i+1], zeroing the last bin. dst and src may
// alias.
func relativePhase(dst, src []complex128) {
	n := len(src)
	for i := 0; i < n-1; i++ {
		dst[i] = cmplx.Conj(src[i]) * src[i+1]
	}
	dst[n-1] = 0
}

func (d *Demodulator) sigAvg() float64 {
	return math.Float64frombits(d.signalAverage.Load())
}

func (d *Demodulator) setSigAvg(v float64) {
	d.signalAverage.Store(math.Float64bits(v))
}

// Params returns the parameter set the demodulator was built with.
func (d *Demodulator) Params() Params { return d.params }

// State returns the current acquisition state.
func (d *Demodulator) State() State { return State(d.state.Load()) }

// TotalFramesRead counts successfully demodulated frames.
func (d *Demodulator) TotalFramesRead() uint64 { return d.totalFramesRead.Load() }

// TotalFramesDesync counts transitions back to the null dip search.
func (d *Demodulator) TotalFramesDesync() uint64 { return d.totalFramesDesync.Load() }

// CoarseFreqOffset returns the coarse offset normalized to the sample rate.
func (d *Demodulator) CoarseFreqOffset() float64 {
	d.offsetMu.Lock()
	defer d.offsetMu.Unlock()
	return d.freqCoarse
}

// FineFreqOffset returns the fine offset normalized to the sample rate.
func (d *Demodulator) FineFreqOffset() float64 {
	d.offsetMu.Lock()
	defer d.offsetMu.Unlock()
	return d.freqFine
}

// CoarseFreqOffsetHz returns the coarse offset in Hz.
func (d *Demodulator) CoarseFreqOffsetHz() float64 { return d.CoarseFreqOffset() * SampleRate }

// FineFreqOffsetHz returns the fine offset in Hz.
func (d *Demodulator) FineFreqOffsetHz() float64 { return d.FineFreqOffset() * SampleRate }

// FineTimeOffset returns the last fine time correction in samples.
func (d *Demodulator) FineTimeOffset() int { return int(d.fineTimeOffset.Load()) }

// SignalAverage returns the running L1 signal level.
func (d *Demodulator) SignalAverage() float64 { return d.sigAvg() }

// ImpulseResponse copies the latest PRS impulse response (dB per lag) into
// dst and returns the number of values copied.
func (d *Demodulator) ImpulseResponse(dst []float64) int {
	d.diagMu.Lock()
	defer d.diagMu.Unlock()
	return copy(dst, d.impulseResponse)
}

// CoarseFrequencyResponse copies the latest coarse correlation spectrum
// (dB, FFT-shifted) into dst and returns the number of values copied.
func (d *Demodulator) CoarseFrequencyResponse(dst []float64) int {
	d.diagMu.Lock()
	defer d.diagMu.Unlock()
	return copy(dst, d.freqResponse)
}
