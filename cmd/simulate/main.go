// Command simulate produces a dummy OFDM transmission as 8-bit IQ on stdout.
// The payload is a scrambler sequence, so a receiver can verify its hard
// decisions bit for bit. No real information is encoded.
package main

import (
	"bufio"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/AlwinEsch/DAB-Radio/internal/ofdm"
	"github.com/AlwinEsch/DAB-Radio/internal/sim"
)

func main() {
	mode := pflag.Int("mode", 1, "transmission mode 1-4")
	freqShift := pflag.Float64("frequency-shift", 0, "carrier offset in Hz")
	printPayload := pflag.Bool("print-payload", false, "write the scrambled payload bytes instead of IQ")
	pflag.Parse()

	params, err := ofdm.ModeParams(ofdm.TransmissionMode(*mode))
	if err != nil {
		log.Fatal("params", "err", err)
	}

	payload := make([]byte, params.FrameBits()/8)
	sim.NewScrambler().Fill(payload)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if *printPayload {
		log.Info("writing payload", "bytes", len(payload))
		if _, err := out.Write(payload); err != nil {
			log.Fatal("write payload", "err", err)
		}
		return
	}

	prsRef := ofdm.NewPRSReference(params)
	mapper := ofdm.NewCarrierMapper(params.FFTSize)
	mod, err := ofdm.NewModulator(params, prsRef, mapper)
	if err != nil {
		log.Fatal("modulator", "err", err)
	}

	frame := make([]complex128, params.FrameLen())
	if err := mod.ProcessBlock(frame, payload); err != nil {
		log.Fatal("modulate", "err", err)
	}
	sim.ApplyFrequencyShift(frame, frame, *freqShift, ofdm.SampleRate)

	// Headroom so the 8-bit quantizer neither clips nor drowns in its own
	// step size.
	scale := float64(200*4) / float64(params.NumCarriers) * float64(params.FFTSize)
	iq := make([]byte, 2*len(frame))
	sim.QuantizeIQ8(iq, frame, scale)

	for {
		if _, err := out.Write(iq); err != nil {
			log.Fatal("write frame", "err", err)
		}
	}
}
