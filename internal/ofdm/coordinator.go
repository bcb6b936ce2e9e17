package ofdm

import "math"

// runCoordinator drives the pipeline workers through each frame: release,
// join their cyclic prefix phase errors into the fine frequency feedback,
// join completion, then publish the soft bit block and free the ingest path
// to swap buffers.
func (d *Demodulator) runCoordinator() {
	defer d.coordWg.Done()
	p := d.params

	for {
		if !d.coordStart.wait(d.coordStop) {
			return
		}

		for _, w := range d.workers {
			w.start.signal()
		}

		for _, w := range d.workers {
			w.phaseReady.waitOnly()
		}
		var total float64
		for _, w := range d.workers {
			total += w.phaseError
		}
		avg := total / float64(p.NumSymbols)

		// The prefix equals its data twin, so without offset the correlation
		// phase is zero; with fine offset w1 it is w1/w_bin * 2*pi, where
		// w_bin = 1/N is the carrier spacing.
		fineError := avg / (2 * math.Pi) / float64(p.FFTSize)
		d.updateFineFrequencyOffset(-d.cfg.Sync.FineFreqUpdateBeta * fineError)

		for _, w := range d.workers {
			w.done.waitOnly()
		}

		d.totalFramesRead.Add(1)
		for _, fn := range d.frameHandlers {
			fn(d.outBits)
		}
		d.coordEnd.signal()
	}
}
