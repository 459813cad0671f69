package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

type Config struct {
	DBPath     string
	OutputFile string
	Format     ImageFormat
	FontPath   string
	Device     string

	MinFrequency *float64
	MaxFrequency *float64
	MinTimestamp *time.Time
	MaxTimestamp *time.Time

	Width         int
	Height        int
	NoAnnotations bool
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Width:  1024,
		Height: 768,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat string
	var minFreq, maxFreq float64
	var from, to string
	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&c.FontPath, "font", "", "Path to a TTF font for scale labels")
	flag.StringVar(&c.Device, "device", "", "Render detections of a single device only")
	flag.Float64Var(&minFreq, "min-freq", 0, "Minimum frequency in Hz")
	flag.Float64Var(&maxFreq, "max-freq", 0, "Maximum frequency in Hz")
	flag.StringVar(&from, "from", "", "Start of the time range (RFC 3339)")
	flag.StringVar(&to, "to", "", "End of the time range (RFC 3339)")
	flag.IntVar(&c.Width, "w", c.Width, "Image width in pixels")
	flag.IntVar(&c.Height, "h", c.Height, "Image height in pixels")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and frequency scales")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "min-freq" {
			c.MinFrequency = &minFreq
		}
		if f.Name == "max-freq" {
			c.MaxFrequency = &maxFreq
		}
	})

	var err error
	if from != "" {
		var t time.Time
		if t, err = time.Parse(time.RFC3339, from); err != nil {
			return nil, fmt.Errorf("invalid -from timestamp: %w", err)
		}
		c.MinTimestamp = &t
	}
	if to != "" {
		var t time.Time
		if t, err = time.Parse(time.RFC3339, to); err != nil {
			return nil, fmt.Errorf("invalid -to timestamp: %w", err)
		}
		c.MaxTimestamp = &t
	}

	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Width < 100 || c.Height < 100 {
		err = errors.New("image must be at least 100x100 pixels")
	} else if !c.NoAnnotations && c.FontPath == "" {
		err = errors.New("font path is required unless annotations are disabled")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
