package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/anhofmann/radio-tracking/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store, err := storage.New(config.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	signals, err := readSignals(store, config, logger)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	grid, err := NewDetectionGrid(config.Width, config.Height, signals)
	if err != nil {
		return err
	}

	logger.Info("finished reading detections",
		slog.Group("stats",
			slog.Int("count", grid.Count),
			slog.String("minTimestamp", grid.TimeStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", grid.TimeEnd.Local().Format(time.DateTime)),
			slog.String("minFreq", fmt.Sprintf("%0.2fHz", grid.FrequencyMin)),
			slog.String("maxFreq", fmt.Sprintf("%0.2fHz", grid.FrequencyMax)),
			slog.String("minSNR", fmt.Sprintf("%0.2fdB", grid.SNRMin)),
			slog.String("maxSNR", fmt.Sprintf("%0.2fdB", grid.SNRMax)),
		))

	logger.Info("rendering detections",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := render(grid, config)
	if err != nil {
		return fmt.Errorf("rendering detections: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}

func readSignals(store *storage.Store, config *Config, logger *slog.Logger) ([]storage.SignalRecord, error) {
	var opts []storage.SignalOption
	var filters []any

	if config.MinFrequency != nil && config.MaxFrequency != nil {
		opts = append(opts, storage.WithFreqRange(*config.MinFrequency, *config.MaxFrequency))

		filters = append(filters,
			slog.String("minFreq", fmt.Sprintf("%0.2fHz", *config.MinFrequency)),
			slog.String("maxFreq", fmt.Sprintf("%0.2fHz", *config.MaxFrequency)))
	}

	if config.MinTimestamp != nil && config.MaxTimestamp != nil {
		opts = append(opts, storage.WithTimeRange(config.MinTimestamp.UTC(), config.MaxTimestamp.UTC()))

		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)),
			slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))
	}

	if config.Device != "" {
		opts = append(opts, storage.WithDevice(config.Device))
		filters = append(filters, slog.String("device", config.Device))
	}

	logger.Info("query configuration", filters...)

	return store.Signals(opts...)
}

func render(grid *DetectionGrid, config *Config) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, grid.Width, grid.Height))

	mapper := newColorMapper(grid.SNRMin, grid.SNRMax)
	for y, row := range grid.Cells {
		for x, snr := range row {
			img.Set(x, y, mapper.color(snr))
		}
	}

	if config.NoAnnotations {
		return img, nil
	}

	ann, err := newAnnotator(config.FontPath)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	if err = ann.annotate(img, grid); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}
	return img, nil
}
