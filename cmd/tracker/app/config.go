package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anhofmann/radio-tracking/internal/consume"
	"github.com/anhofmann/radio-tracking/internal/detect"
	"github.com/anhofmann/radio-tracking/internal/dsp"
	"github.com/anhofmann/radio-tracking/internal/sdr"
	"github.com/anhofmann/radio-tracking/internal/tracking"
)

const (
	DeviceRTLSDR DeviceType = "rtl-sdr"
	DeviceSim    DeviceType = "sim"
)

type DeviceType string

// LogLevel is an slog.Level that unmarshals from YAML strings such as
// "debug" or "warn".
type LogLevel slog.Level

func (l *LogLevel) UnmarshalYAML(value *yaml.Node) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value.Value)); err != nil {
		return fmt.Errorf("app.LogLevel: %w", err)
	}

	*l = LogLevel(level)
	return nil
}

// Config represents the main application configuration.
type Config struct {
	Settings Settings       `yaml:"settings"`
	Devices  []DeviceConfig `yaml:"devices"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Matching MatchingConfig `yaml:"matching"`
	Publish  PublishConfig  `yaml:"publish"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel       LogLevel     `yaml:"logLevel"`
	SDRTimeout     sdr.Duration `yaml:"sdrTimeout"`     // Block read timeout per device
	SDRMaxRestarts int          `yaml:"sdrMaxRestarts"` // Lifetime restart budget per device
	ReorderHoldoff sdr.Duration `yaml:"reorderHoldoff"` // Cross-device signal reorder window
}

// DeviceConfig represents a single device configuration. The typed source
// configuration stays a raw node until the device is created.
type DeviceConfig struct {
	Name        string     `yaml:"name"`
	Type        DeviceType `yaml:"type"`
	Enabled     bool       `yaml:"enabled"`
	Calibration float64    `yaml:"calibration"` // Per-device power offset in dB
	Config      yaml.Node  `yaml:"config"`
}

// AnalysisConfig represents the spectral analysis and segmentation
// settings shared by all devices.
type AnalysisConfig struct {
	FFTSize            int          `yaml:"fftNperseg"`
	FFTWindow          dsp.Window   `yaml:"fftWindow"`
	FFTOverlap         float64      `yaml:"fftOverlap"`
	NoiseWindowFrames  int          `yaml:"noiseWindowFrames"`
	SignalThresholdDBW float64      `yaml:"signalThresholdDBW"`
	SNRThresholdDB     float64      `yaml:"snrThresholdDB"`
	SignalMinDuration  sdr.Duration `yaml:"signalMinDuration"`
	SignalMaxDuration  sdr.Duration `yaml:"signalMaxDuration"`
}

// MatchingConfig represents the cross-device matching tolerances.
type MatchingConfig struct {
	Timeout      sdr.Duration `yaml:"timeout"`
	TimeDiff     sdr.Duration `yaml:"timeDiff"`
	BandwidthHz  float64      `yaml:"bandwidthHz"`
	DurationDiff sdr.Duration `yaml:"durationDiff"`
}

// PublishConfig represents the sink configuration. Absent sections
// disable the corresponding sink.
type PublishConfig struct {
	Stdout bool                `yaml:"stdout"`
	CSV    *CSVConfig          `yaml:"csv"`
	SQLite *SQLiteConfig       `yaml:"sqlite"`
	MQTT   *consume.MQTTConfig `yaml:"mqtt"`
}

// CSVConfig represents CSV sink settings.
type CSVConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// SQLiteConfig represents SQLite sink settings.
type SQLiteConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// LoadConfig reads and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate fails fast on invalid settings, before any device is opened.
func (c *Config) Validate() error {
	var enabled int
	seen := make(map[string]struct{})
	for _, device := range c.Devices {
		if device.Name == "" {
			return fmt.Errorf("config: device without a name")
		}
		if _, ok := seen[device.Name]; ok {
			return fmt.Errorf("config: duplicate device name '%s'", device.Name)
		}
		seen[device.Name] = struct{}{}

		switch device.Type {
		case DeviceRTLSDR, DeviceSim:
		default:
			return fmt.Errorf("config: device '%s': unknown type '%s'", device.Name, device.Type)
		}
		if device.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("config: no devices enabled")
	}

	if c.Settings.SDRTimeout <= 0 {
		c.Settings.SDRTimeout = sdr.Duration(sdr.DefaultReadTimeout)
	}
	if c.Settings.SDRMaxRestarts == 0 {
		c.Settings.SDRMaxRestarts = sdr.DefaultMaxRestarts
	}
	if c.Settings.SDRMaxRestarts < 0 {
		return fmt.Errorf("config: sdrMaxRestarts must not be negative, got %d", c.Settings.SDRMaxRestarts)
	}
	if c.Settings.ReorderHoldoff < 0 {
		return fmt.Errorf("config: reorderHoldoff must not be negative, got %s", c.Settings.ReorderHoldoff)
	}
	if c.Settings.ReorderHoldoff == 0 {
		c.Settings.ReorderHoldoff = sdr.Duration(500 * time.Millisecond)
	}

	segCfg := c.segmenterConfig()
	if err := segCfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	matchCfg := c.matcherConfig()
	if err := matchCfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

func (c *Config) segmenterConfig() detect.Config {
	return detect.Config{
		ThresholdDBW:   c.Analysis.SignalThresholdDBW,
		SNRThresholdDB: c.Analysis.SNRThresholdDB,
		MinDuration:    c.Analysis.SignalMinDuration.Std(),
		MaxDuration:    c.Analysis.SignalMaxDuration.Std(),
	}
}

func (c *Config) matcherConfig() tracking.MatcherConfig {
	return tracking.MatcherConfig{
		Timeout:      c.Matching.Timeout.Std(),
		TimeDiff:     c.Matching.TimeDiff.Std(),
		BandwidthHz:  c.Matching.BandwidthHz,
		DurationDiff: c.Matching.DurationDiff.Std(),
	}
}
