package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlwinEsch/DAB-Radio/internal/ofdm"
)

func TestLoad_Empty(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ofdm.DefaultConfig(), f.DemodConfig())
	mode, err := f.Mode()
	require.NoError(t, err)
	assert.Equal(t, ofdm.ModeI, mode)
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
signal_l1:
  nb_samples: 50
sync:
  impulse_peak_threshold_db: 15
  is_coarse_freq_correction: false
receiver:
  transmission_mode: 3
  diagnostics_addr: "127.0.0.1:8090"
`), 0o644))

	f, err := Load(path)
	require.NoError(t, err)

	cfg := f.DemodConfig()
	def := ofdm.DefaultConfig()
	assert.Equal(t, 50, cfg.SignalL1.NbSamples)
	assert.Equal(t, 15.0, cfg.Sync.ImpulsePeakThresholdDb)
	assert.False(t, cfg.Sync.IsCoarseFreqCorrection)
	// Untouched keys keep their defaults.
	assert.Equal(t, def.SignalL1.UpdateBeta, cfg.SignalL1.UpdateBeta)
	assert.Equal(t, def.NullL1Search, cfg.NullL1Search)
	assert.Equal(t, def.Sync.CoarseFreqSlowBeta, cfg.Sync.CoarseFreqSlowBeta)

	mode, err := f.Mode()
	require.NoError(t, err)
	assert.Equal(t, ofdm.ModeIII, mode)
	assert.Equal(t, "127.0.0.1:8090", f.Receiver.DiagnosticsAddr)
}

func TestLoad_BadMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("receiver:\n  transmission_mode: 7\n"), 0o644))
	f, err := Load(path)
	require.NoError(t, err)
	_, err = f.Mode()
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
