package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/anhofmann/radio-tracking/internal/consume"
	"github.com/anhofmann/radio-tracking/internal/detect"
	"github.com/anhofmann/radio-tracking/internal/dsp"
	"github.com/anhofmann/radio-tracking/internal/sdr"
	"github.com/anhofmann/radio-tracking/internal/sdr/rtlsdr"
	"github.com/anhofmann/radio-tracking/internal/sdr/sim"
	"github.com/anhofmann/radio-tracking/internal/storage"
	"github.com/anhofmann/radio-tracking/internal/tracking"
)

const storageDir = "data"

// Run wires the configured devices, sinks and matcher together and runs
// the detection pipeline until the context is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	runID := uuid.NewString()
	start := time.Now()

	dispatcher := consume.NewDispatcher(consume.WithLogger(logger))

	var store *storage.Store
	if config.Publish.SQLite != nil {
		var err error
		if store, err = createStore(config.Publish.SQLite, start); err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()
	}

	orchestrator := NewOrchestrator(
		tracking.NewMatcher(config.matcherConfig()),
		tracking.NewReorderBuffer(config.Settings.ReorderHoldoff.Std()),
		dispatcher,
		logger,
	)

	sessions := make(map[string]int64)
	for i := range config.Devices {
		deviceConfig := &config.Devices[i]
		if !deviceConfig.Enabled {
			continue
		}

		device, analyzer, sourceConfig, err := createChain(deviceConfig, config, logger)
		if err != nil {
			return fmt.Errorf("failed to create device '%s': %w", deviceConfig.Name, err)
		}

		if store != nil {
			sessionID, err := store.CreateSession(runID, deviceConfig.Name, sourceConfig)
			if err != nil {
				return fmt.Errorf("creating session for device '%s': %w", deviceConfig.Name, err)
			}
			sessions[deviceConfig.Name] = sessionID
		}

		orchestrator.AddChain(device, analyzer, detect.NewSegmenter(deviceConfig.Name, config.segmenterConfig()))
	}

	if config.Publish.Stdout {
		dispatcher.Add("stdout", consume.NewStdoutSink(os.Stdout))
	}
	if config.Publish.CSV != nil {
		sink, err := consume.NewCSVSink(config.Publish.CSV.DataDirectory, start)
		if err != nil {
			return fmt.Errorf("failed to create csv sink: %w", err)
		}
		dispatcher.Add("csv", sink)
	}
	if store != nil {
		dispatcher.Add("sqlite", consume.NewSQLiteSink(store, sessions))
	}
	if config.Publish.MQTT != nil {
		sink, err := consume.NewMQTTSink(*config.Publish.MQTT)
		if err != nil {
			return fmt.Errorf("failed to create mqtt sink: %w", err)
		}
		dispatcher.Add("mqtt", sink)
	}

	dispatcher.Start()
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.Warn(err.Error())
		}
	}()

	logger.Info("starting detection", slog.String("runID", runID))
	return orchestrator.Run(ctx)
}

// createChain builds the supervisor and analyzer for one configured
// device. The returned source configuration is recorded with the session.
func createChain(deviceConfig *DeviceConfig, config *Config, logger *slog.Logger) (*sdr.Device, *dsp.Analyzer, any, error) {
	var (
		source       sdr.Source
		sourceConfig any
		centerFreq   float64
		sampleRate   int
	)

	switch deviceConfig.Type {
	case DeviceRTLSDR:
		var cfg rtlsdr.Config
		if err := deviceConfig.Config.Decode(&cfg); err != nil {
			return nil, nil, nil, fmt.Errorf("decoding rtl-sdr config: %w", err)
		}

		src, err := rtlsdr.New(cfg, rtlsdr.WithLogger(logger))
		if err != nil {
			return nil, nil, nil, err
		}
		source, sourceConfig = src, cfg
		centerFreq, sampleRate = cfg.CenterFreq, cfg.SampleRate

	case DeviceSim:
		var cfg sim.Config
		if err := deviceConfig.Config.Decode(&cfg); err != nil {
			return nil, nil, nil, fmt.Errorf("decoding sim config: %w", err)
		}

		src, err := sim.New(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		source, sourceConfig = src, cfg
		centerFreq, sampleRate = cfg.CenterFreq, cfg.SampleRate

	default:
		return nil, nil, nil, fmt.Errorf("unknown device type '%s'", deviceConfig.Type)
	}

	analyzer, err := dsp.NewAnalyzer(dsp.Config{
		Device:      deviceConfig.Name,
		CenterFreq:  centerFreq,
		SampleRate:  sampleRate,
		NPerSeg:     config.Analysis.FFTSize,
		Overlap:     config.Analysis.FFTOverlap,
		Window:      config.Analysis.FFTWindow,
		Calibration: deviceConfig.Calibration,
		NoiseWindow: config.Analysis.NoiseWindowFrames,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	device := sdr.NewDevice(deviceConfig.Name, sampleRate, source,
		sdr.WithLogger(logger),
		sdr.WithReadTimeout(config.Settings.SDRTimeout.Std()),
		sdr.WithMaxRestarts(config.Settings.SDRMaxRestarts),
	)

	return device, analyzer, sourceConfig, nil
}

func createStore(config *SQLiteConfig, start time.Time) (*storage.Store, error) {
	dir := config.DataDirectory
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, storageDir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("storage directory '%s': %w", dir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dir)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("tracking_%s.sqlite", start.UTC().Format("20060102_150405")))
	store, err := storage.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	return store, nil
}
