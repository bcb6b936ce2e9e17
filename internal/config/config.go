// Package config loads the receiver's yaml configuration file. Absent keys
// keep their defaults, so a partial file only overrides what it names.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AlwinEsch/DAB-Radio/internal/ofdm"
)

// File is the on-disk configuration of the receiver.
type File struct {
	SignalL1 struct {
		NbSamples  int     `yaml:"nb_samples"`
		NbDecimate int     `yaml:"nb_decimate"`
		UpdateBeta float64 `yaml:"update_beta"`
	} `yaml:"signal_l1"`

	NullL1Search struct {
		ThreshNullStart float64 `yaml:"thresh_null_start"`
		ThreshNullEnd   float64 `yaml:"thresh_null_end"`
	} `yaml:"null_l1_search"`

	Sync struct {
		IsCoarseFreqCorrection         bool    `yaml:"is_coarse_freq_correction"`
		MaxCoarseFreqCorrectionNorm    float64 `yaml:"max_coarse_freq_correction_norm"`
		CoarseFreqSlowBeta             float64 `yaml:"coarse_freq_slow_beta"`
		ImpulsePeakThresholdDb         float64 `yaml:"impulse_peak_threshold_db"`
		ImpulsePeakDistanceProbability float64 `yaml:"impulse_peak_distance_probability"`
		FineFreqUpdateBeta             float64 `yaml:"fine_freq_update_beta"`
	} `yaml:"sync"`

	Receiver struct {
		TransmissionMode int    `yaml:"transmission_mode"`
		Input            string `yaml:"input"`
		DiagnosticsAddr  string `yaml:"diagnostics_addr"`
	} `yaml:"receiver"`
}

// Default returns a File pre-filled with the engine defaults and mode I.
func Default() *File {
	f := &File{}
	f.SetDemodConfig(ofdm.DefaultConfig())
	f.Receiver.TransmissionMode = 1
	return f
}

// Load reads path over the defaults. A missing path is not an error when
// empty.
func Load(path string) (*File, error) {
	f := Default()
	if path == "" {
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return f, nil
}

// DemodConfig converts the file into the engine's tuning structure.
func (f *File) DemodConfig() ofdm.Config {
	cfg := ofdm.Config{}
	cfg.SignalL1.NbSamples = f.SignalL1.NbSamples
	cfg.SignalL1.NbDecimate = f.SignalL1.NbDecimate
	cfg.SignalL1.UpdateBeta = f.SignalL1.UpdateBeta
	cfg.NullL1Search.ThreshNullStart = f.NullL1Search.ThreshNullStart
	cfg.NullL1Search.ThreshNullEnd = f.NullL1Search.ThreshNullEnd
	cfg.Sync.IsCoarseFreqCorrection = f.Sync.IsCoarseFreqCorrection
	cfg.Sync.MaxCoarseFreqCorrectionNorm = f.Sync.MaxCoarseFreqCorrectionNorm
	cfg.Sync.CoarseFreqSlowBeta = f.Sync.CoarseFreqSlowBeta
	cfg.Sync.ImpulsePeakThresholdDb = f.Sync.ImpulsePeakThresholdDb
	cfg.Sync.ImpulsePeakDistanceProbability = f.Sync.ImpulsePeakDistanceProbability
	cfg.Sync.FineFreqUpdateBeta = f.Sync.FineFreqUpdateBeta
	return cfg
}

// SetDemodConfig copies engine tuning into the file structure.
func (f *File) SetDemodConfig(cfg ofdm.Config) {
	f.SignalL1.NbSamples = cfg.SignalL1.NbSamples
	f.SignalL1.NbDecimate = cfg.SignalL1.NbDecimate
	f.SignalL1.UpdateBeta = cfg.SignalL1.UpdateBeta
	f.NullL1Search.ThreshNullStart = cfg.NullL1Search.ThreshNullStart
	f.NullL1Search.ThreshNullEnd = cfg.NullL1Search.ThreshNullEnd
	f.Sync.IsCoarseFreqCorrection = cfg.Sync.IsCoarseFreqCorrection
	f.Sync.MaxCoarseFreqCorrectionNorm = cfg.Sync.MaxCoarseFreqCorrectionNorm
	f.Sync.CoarseFreqSlowBeta = cfg.Sync.CoarseFreqSlowBeta
	f.Sync.ImpulsePeakThresholdDb = cfg.Sync.ImpulsePeakThresholdDb
	f.Sync.ImpulsePeakDistanceProbability = cfg.Sync.ImpulsePeakDistanceProbability
	f.Sync.FineFreqUpdateBeta = cfg.Sync.FineFreqUpdateBeta
}

// Mode returns the configured transmission mode.
func (f *File) Mode() (ofdm.TransmissionMode, error) {
	m := ofdm.TransmissionMode(f.Receiver.TransmissionMode)
	if _, err := ofdm.ModeParams(m); err != nil {
		return 0, err
	}
	return m, nil
}
