package ofdm

// Config are the tuning knobs of the acquisition and tracking loops. Zero
// values are not meaningful; start from DefaultConfig.
type Config struct {
	SignalL1     SignalL1Config
	NullL1Search NullL1SearchConfig
	Sync         SyncConfig
}

// SignalL1Config controls the running L1 signal average that the null power
// dip detector compares windows against.
type SignalL1Config struct {
	NbSamples  int     // samples per measurement window
	NbDecimate int     // window stride multiplier for the running average
	UpdateBeta float64 // IIR weight of the previous average
}

// NullL1SearchConfig sets the entry/exit thresholds of the null power dip,
// as multipliers of the running L1 average.
type NullL1SearchConfig struct {
	ThreshNullStart float64
	ThreshNullEnd   float64
}

// SyncConfig controls coarse/fine frequency correction and fine time
// synchronisation.
type SyncConfig struct {
	IsCoarseFreqCorrection      bool
	MaxCoarseFreqCorrectionNorm float64 // search half-width, normalized to sample rate
	CoarseFreqSlowBeta          float64 // IIR rate once near lock
	ImpulsePeakThresholdDb      float64 // minimum peak-minus-mean to accept the PRS impulse
	// ImpulsePeakDistanceProbability weighs impulse peaks by distance from the
	// expected position; 1.0 means no decay.
	ImpulsePeakDistanceProbability float64
	FineFreqUpdateBeta             float64 // IIR rate of the cyclic prefix feedback
}

// DefaultConfig returns the tuning used against real transmissions.
func DefaultConfig() Config {
	return Config{
		SignalL1: SignalL1Config{
			NbSamples:  100,
			NbDecimate: 5,
			UpdateBeta: 0.95,
		},
		NullL1Search: NullL1SearchConfig{
			ThreshNullStart: 0.35,
			ThreshNullEnd:   0.75,
		},
		Sync: SyncConfig{
			IsCoarseFreqCorrection:         true,
			MaxCoarseFreqCorrectionNorm:    0.01,
			CoarseFreqSlowBeta:             0.1,
			ImpulsePeakThresholdDb:         20.0,
			ImpulsePeakDistanceProbability: 0.15,
			FineFreqUpdateBeta:             0.5,
		},
	}
}
