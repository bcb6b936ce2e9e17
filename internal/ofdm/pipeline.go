package ofdm

import (
	"math"
	"math/cmplx"
	"runtime"

	"github.com/AlwinEsch/DAB-Radio/internal/dsp"
)

// pipelineWorker owns a half-open symbol range of the active frame buffer.
// The ranges partition [0, NumSymbols+1); the extra slot is the trailing
// null. Workers communicate only through gates and their published phase
// error sum.
type pipelineWorker struct {
	symbolStart int
	symbolEnd   int

	start      gate
	phaseReady gate
	fftReady   gate
	done       gate
	stop       chan struct{}

	// phaseError is written before phaseReady is signalled and read by the
	// coordinator only after waiting on it.
	phaseError float64

	fft *dsp.FFT
}

// startPipeline spawns the coordinator and the pipeline workers. With two or
// more CPUs one is left for the ingest/coordinator path.
func (d *Demodulator) startPipeline(numThreads int) {
	nbSyms := d.params.NumSymbols + 1
	t := numThreads
	if t <= 0 {
		t = runtime.NumCPU()
		if t > 1 {
			t--
		}
	}
	if t > nbSyms {
		t = nbSyms
	}
	if t < 1 {
		t = 1
	}

	for _, r := range partitionSymbols(nbSyms, t) {
		d.workers = append(d.workers, &pipelineWorker{
			symbolStart: r[0],
			symbolEnd:   r[1],
			start:       newGate(),
			phaseReady:  newGate(),
			fftReady:    newGate(),
			done:        newGate(),
			stop:        make(chan struct{}),
			fft:         dsp.NewFFT(d.params.FFTSize),
		})
	}

	d.coordWg.Add(1)
	go d.runCoordinator()
	for i, w := range d.workers {
		var next *pipelineWorker
		if i+1 < len(d.workers) {
			next = d.workers[i+1]
		}
		d.workerWg.Add(1)
		go d.runWorker(w, next)
	}
}

// partitionSymbols splits [0, total) into count contiguous ranges, the
// earlier ones taking the ceiling share and the last absorbing the
// remainder.
func partitionSymbols(total, count int) [][2]int {
	ranges := make([][2]int, 0, count)
	start := 0
	for i := 0; i < count; i++ {
		remain := total - start
		share := (remain + count - i - 1) / (count - i)
		end := start + share
		if i == count-1 {
			end = total
		}
		ranges = append(ranges, [2]int{start, end})
		start = end
	}
	return ranges
}

// runWorker is the per-frame loop of one pipeline worker: derotate the
// symbols in range, publish the cyclic prefix phase error, FFT (first symbol
// early, so the previous worker can take it as its DQPSK successor), then
// differentially demodulate.
func (d *Demodulator) runWorker(w, next *pipelineWorker) {
	defer d.workerWg.Done()
	p := d.params
	endNoNull := min(w.symbolEnd, p.NumSymbols)
	endDQPSK := min(w.symbolEnd, p.NumSymbols-1)

	for {
		if !w.start.wait(w.stop) {
			return
		}
		active := d.active.Load()

		// One snapshot per frame; the ingest path may adjust the offsets for
		// the next frame while this one is in flight.
		freqOffset := d.frequencyOffset()
		for i := w.symbolStart; i < w.symbolEnd; i++ {
			sym := active.symbol(i)
			phase0 := 2 * math.Pi * freqOffset * float64(i*p.SymbolLen)
			dsp.ApplyPLL(sym, sym, freqOffset, phase0)
		}

		// The cyclic prefix repeats the symbol tail, so any residual
		// frequency offset shows up as the phase of prefix-vs-tail
		// correlation. The null symbol carries no prefix and is skipped.
		var total float64
		for i := w.symbolStart; i < endNoNull; i++ {
			sym := active.symbol(i)
			v := dsp.ConjMulSum(sym[:p.CPLen], sym[p.FFTSize:p.FFTSize+p.CPLen])
			total += math.Atan2(imag(v), real(v))
		}
		w.phaseError = total
		w.phaseReady.signal()

		fftSymbol := func(i int) {
			sym := active.symbol(i)
			dst := d.fftBuffer[i*p.FFTSize : (i+1)*p.FFTSize]
			w.fft.Forward(dst, sym[p.CPLen:p.CPLen+p.FFTSize])
		}
		// The first FFT unblocks the previous worker's last DQPSK; do it
		// before the rest so that worker is not held up.
		fftSymbol(w.symbolStart)
		w.fftReady.signal()
		for i := w.symbolStart + 1; i < w.symbolEnd; i++ {
			fftSymbol(i)
		}

		if next != nil && endDQPSK > w.symbolStart {
			d.demodSymbolRange(w.symbolStart, endDQPSK-1)
			next.fftReady.waitOnly()
			d.demodSymbolRange(endDQPSK-1, endDQPSK)
		} else {
			d.demodSymbolRange(w.symbolStart, endDQPSK)
		}

		w.done.signal()
	}
}

// demodSymbolRange computes the DQPSK vectors and soft bits for symbol pairs
// (i, i+1) in [start, end).
func (d *Demodulator) demodSymbolRange(start, end int) {
	p := d.params
	for i := start; i < end; i++ {
		prev := d.fftBuffer[i*p.FFTSize : (i+1)*p.FFTSize]
		curr := d.fftBuffer[(i+1)*p.FFTSize : (i+2)*p.FFTSize]
		vec := d.dqpskVec[i*p.NumCarriers : (i+1)*p.NumCarriers]
		bits := d.outBits[i*p.NumCarriers*2 : (i+1)*p.NumCarriers*2]
		demodDQPSK(curr, prev, vec, p.FFTSize)
		d.demapSoftBits(vec, bits)
	}
}

// demodDQPSK strips the zero padding and takes the phase difference of each
// active carrier between consecutive symbols. Carriers run -C/2..C/2 with
// the uninformative DC bin skipped.
func demodDQPSK(curr, prev, vec []complex128, fftSize int) {
	half := len(vec) / 2
	idx := 0
	for k := -half; k <= half; k++ {
		if k == 0 {
			continue
		}
		bin := (fftSize + k) % fftSize
		vec[idx] = curr[bin] * cmplx.Conj(prev[bin])
		idx++
	}
}

// demapSoftBits deinterleaves the carriers and converts each phase vector
// into two soft bits. Normalization uses the L-infinity norm: a +-1+-1j
// vector must yield full-magnitude soft bits, where an L2 norm would truncate
// them to 0.707.
func (d *Demodulator) demapSoftBits(vec []complex128, bits []SoftBit) {
	n := d.params.NumCarriers
	for i := 0; i < n; i++ {
		v := vec[d.carrierMapper[i]]
		a := math.Max(math.Abs(real(v)), math.Abs(imag(v)))
		if a == 0 {
			// A blanked carrier carries no confidence either way.
			bits[i] = 0
			bits[i+n] = 0
			continue
		}
		bits[i] = softBit(real(v) / a)
		bits[i+n] = softBit(-imag(v) / a)
	}
}

// softBit folds the QPSK component x = 1-2b into the decoder's signed range,
// so bit 0 maps to -SoftDecisionHigh and bit 1 to +SoftDecisionHigh.
func softBit(x float64) SoftBit {
	return SoftBit(-x * SoftDecisionHigh)
}
