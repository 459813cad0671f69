package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhofmann/radio-tracking/internal/sdr"
)

const validYAML = `
settings:
  logLevel: debug
devices:
  - name: sim0
    type: sim
    enabled: true
    config:
      centerFreq: 150100000
      sampleRate: 250000
      toneFreq: 150150000
      toneDBW: -30
      noiseDBW: -110
      pulseLength: 15ms
      pulseEvery: 100ms
analysis:
  fftNperseg: 256
  fftWindow: hann
  signalThresholdDBW: -70
  snrThresholdDB: 10
  signalMinDuration: 10ms
  signalMaxDuration: 50ms
matching:
  timeout: 2s
  timeDiff: 100ms
  bandwidthHz: 8000
publish:
  stdout: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, LogLevel(slog.LevelDebug), config.Settings.LogLevel)
	require.Len(t, config.Devices, 1)
	assert.Equal(t, "sim0", config.Devices[0].Name)
	assert.Equal(t, DeviceSim, config.Devices[0].Type)
	assert.Equal(t, 100*time.Millisecond, config.Matching.TimeDiff.Std())

	// Defaults are applied during validation.
	assert.Equal(t, sdr.DefaultReadTimeout, config.Settings.SDRTimeout.Std())
	assert.Equal(t, sdr.DefaultMaxRestarts, config.Settings.SDRMaxRestarts)
	assert.Equal(t, 500*time.Millisecond, config.Settings.ReorderHoldoff.Std())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	load := func(t *testing.T) *Config {
		config, err := LoadConfig(writeConfig(t, validYAML))
		require.NoError(t, err)
		return config
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no devices enabled", func(c *Config) { c.Devices[0].Enabled = false }},
		{"device without name", func(c *Config) { c.Devices[0].Name = "" }},
		{"duplicate device names", func(c *Config) {
			c.Devices = append(c.Devices, c.Devices[0])
		}},
		{"unknown device type", func(c *Config) { c.Devices[0].Type = "hackrf" }},
		{"negative restarts", func(c *Config) { c.Settings.SDRMaxRestarts = -1 }},
		{"negative holdoff", func(c *Config) { c.Settings.ReorderHoldoff = sdr.Duration(-time.Second) }},
		{"zero min duration", func(c *Config) { c.Analysis.SignalMinDuration = 0 }},
		{"max below min duration", func(c *Config) {
			c.Analysis.SignalMaxDuration = sdr.Duration(time.Millisecond)
		}},
		{"zero matching timeout", func(c *Config) { c.Matching.Timeout = 0 }},
		{"zero matching bandwidth", func(c *Config) { c.Matching.BandwidthHz = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := load(t)
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}
