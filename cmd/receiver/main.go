// Command receiver demodulates a stream of 8-bit IQ baseband samples at
// 2.048 MS/s into per-frame soft decision bits, exposing sync diagnostics
// over a websocket.
package main

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/AlwinEsch/DAB-Radio/internal/config"
	"github.com/AlwinEsch/DAB-Radio/internal/ofdm"
	"github.com/AlwinEsch/DAB-Radio/internal/server"
	"github.com/AlwinEsch/DAB-Radio/internal/sim"
)

// readBlock is the IQ read granularity: 65536 bytes = 32768 samples = 16 ms.
const readBlock = 65536

func main() {
	configPath := pflag.String("config", "", "yaml configuration file")
	mode := pflag.Int("mode", 0, "transmission mode 1-4 (overrides config)")
	input := pflag.String("input", "", "8-bit IQ input file, - or empty for stdin")
	diagAddr := pflag.String("diagnostics-addr", "", "websocket diagnostics listen address")
	threads := pflag.Int("threads", 0, "pipeline workers, 0 for auto")
	logLevel := pflag.String("log-level", "info", "log level: debug, info, warn, error")
	pflag.Parse()

	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config", "err", err)
	}
	if *mode != 0 {
		cfg.Receiver.TransmissionMode = *mode
	}
	if *input != "" {
		cfg.Receiver.Input = *input
	}
	if *diagAddr != "" {
		cfg.Receiver.DiagnosticsAddr = *diagAddr
	}

	tm, err := cfg.Mode()
	if err != nil {
		log.Fatal("mode", "err", err)
	}
	params, _ := ofdm.ModeParams(tm)

	in := os.Stdin
	if cfg.Receiver.Input != "" && cfg.Receiver.Input != "-" {
		f, err := os.Open(cfg.Receiver.Input)
		if err != nil {
			log.Fatal("open input", "err", err)
		}
		defer f.Close()
		in = f
	}

	prsRef := ofdm.NewPRSReference(params)
	mapper := ofdm.NewCarrierMapper(params.FFTSize)
	demod, err := ofdm.NewDemodulator(params, prsRef, mapper, cfg.DemodConfig(), *threads)
	if err != nil {
		log.Fatal("demodulator", "err", err)
	}
	defer demod.Close()

	var hub *server.Hub
	if cfg.Receiver.DiagnosticsAddr != "" {
		hub = server.NewHub()
		go func() {
			if err := server.Serve(cfg.Receiver.DiagnosticsAddr, hub); err != nil {
				log.Error("diagnostics server", "err", err)
			}
		}()
	}

	demod.SubscribeOnFrame(func(bits []ofdm.SoftBit) {
		log.Info("frame",
			"read", demod.TotalFramesRead(),
			"desync", demod.TotalFramesDesync(),
			"coarseHz", demod.CoarseFreqOffsetHz(),
			"fineHz", demod.FineFreqOffsetHz(),
			"fineTime", demod.FineTimeOffset(),
		)
		if hub != nil {
			hub.Publish(diagnostics(demod))
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		raw := make([]byte, readBlock)
		samples := make([]complex128, readBlock/2)
		for {
			n, err := io.ReadFull(in, raw)
			if n > 0 {
				m := sim.DequantizeIQ8(samples, raw[:n])
				demod.Process(samples[:m])
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					log.Error("read input", "err", err)
				}
				return
			}
		}
	}()

	select {
	case <-sigCh:
		log.Info("interrupted")
	case <-done:
	}

	log.Info("stopping",
		"framesRead", demod.TotalFramesRead(),
		"framesDesync", demod.TotalFramesDesync(),
	)
}

func diagnostics(d *ofdm.Demodulator) server.FrameDiagnostics {
	impulse := make([]float64, d.Params().FFTSize)
	coarse := make([]float64, d.Params().FFTSize)
	d.ImpulseResponse(impulse)
	d.CoarseFrequencyResponse(coarse)
	return server.FrameDiagnostics{
		State:             d.State().String(),
		TotalFramesRead:   d.TotalFramesRead(),
		TotalFramesDesync: d.TotalFramesDesync(),
		CoarseFreqHz:      d.CoarseFreqOffsetHz(),
		FineFreqHz:        d.FineFreqOffsetHz(),
		FineTimeOffset:    d.FineTimeOffset(),
		SignalAverage:     d.SignalAverage(),
		ImpulseResponse:   impulse,
		CoarseResponse:    coarse,
	}
}
