// Package dsp turns sample blocks into averaged power spectra with
// per-bin noise floor and SNR estimates.
package dsp

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/anhofmann/radio-tracking/internal/sdr"
)

// minPower clamps linear power before dB conversion so silent bins map to
// a large negative dBW value instead of -Inf.
const minPower = 1e-20

// Frame is one averaged power spectrum for a single sample block.
type Frame struct {
	Device    string
	Timestamp time.Time     // Derived start time of the underlying block
	Duration  time.Duration // Wall-clock span the frame represents
	BinWidth  float64       // Hz per FFT bin

	Freqs []float64 // Absolute bin center frequencies in Hz, ascending
	Power []float64 // Averaged bin power in dBW
	Noise []float64 // Trailing noise floor estimate in dBW
	SNR   []float64 // Power - Noise in dB
}

// Config holds the spectral analysis parameters for one device.
type Config struct {
	Device      string
	CenterFreq  float64 // Tuned center frequency in Hz
	SampleRate  int
	NPerSeg     int     // FFT segment length
	Overlap     float64 // Segment overlap fraction, default 0.5
	Window      Window
	Calibration float64 // Per-device power offset in dB
	NoiseWindow int     // Frames of noise floor history, default DefaultNoiseWindow
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("dsp: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.NPerSeg <= 0 || c.NPerSeg&(c.NPerSeg-1) != 0 {
		return fmt.Errorf("dsp: fft segment length must be a positive power of two, got %d", c.NPerSeg)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("dsp: overlap must be within [0, 1), got %f", c.Overlap)
	}
	if !c.Window.Valid() {
		return fmt.Errorf("dsp: unknown window function '%s'", c.Window)
	}
	return nil
}

// Analyzer computes spectrogram frames for one device. It keeps the FFT
// plan, window taper and noise floor history between blocks and is not
// safe for concurrent use.
type Analyzer struct {
	cfg      Config
	fft      *fourier.CmplxFFT
	win      []float64
	winPower float64 // sum of squared taper coefficients
	step     int

	freqs   []float64
	noise   *noiseTracker
	segbuf  []complex128
	linear  []float64
	scratch []complex128
}

// NewAnalyzer creates an analyzer for the given configuration.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Window == "" {
		cfg.Window = WindowBoxcar
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = 0.5
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	win, err := cfg.Window.Coefficients(cfg.NPerSeg)
	if err != nil {
		return nil, err
	}

	var winPower float64
	for _, w := range win {
		winPower += w * w
	}

	step := int(float64(cfg.NPerSeg) * (1 - cfg.Overlap))
	if step < 1 {
		step = 1
	}

	n := cfg.NPerSeg
	binWidth := float64(cfg.SampleRate) / float64(n)
	freqs := make([]float64, n)
	for k := range freqs {
		freqs[k] = cfg.CenterFreq + (float64(k)-float64(n)/2)*binWidth
	}

	return &Analyzer{
		cfg:      cfg,
		fft:      fourier.NewCmplxFFT(n),
		win:      win,
		winPower: winPower,
		step:     step,
		freqs:    freqs,
		noise:    newNoiseTracker(n, cfg.NoiseWindow),
		segbuf:   make([]complex128, n),
		linear:   make([]float64, n),
		scratch:  make([]complex128, n),
	}, nil
}

// BinWidth returns the frequency resolution in Hz.
func (a *Analyzer) BinWidth() float64 {
	return float64(a.cfg.SampleRate) / float64(a.cfg.NPerSeg)
}

// Analyze computes one averaged spectrum for the block. Segments of
// NPerSeg samples with the configured overlap are windowed, transformed
// and averaged; power is converted to dBW with the calibration offset
// applied. The noise floor trails previous frames only, so the current
// frame's own pulse does not raise it.
func (a *Analyzer) Analyze(block sdr.Block) (*Frame, error) {
	n := a.cfg.NPerSeg
	if len(block.Samples) < n {
		return nil, fmt.Errorf("dsp: block of %d samples shorter than fft segment %d", len(block.Samples), n)
	}

	for i := range a.linear {
		a.linear[i] = 0
	}

	segments := 0
	for start := 0; start+n <= len(block.Samples); start += a.step {
		seg := block.Samples[start : start+n]
		for i := range a.segbuf {
			a.segbuf[i] = seg[i] * complex(a.win[i], 0)
		}

		coeffs := a.fft.Coefficients(a.scratch, a.segbuf)
		for k, c := range coeffs {
			// fftshift: negative frequencies first
			shifted := (k + n/2) % n
			re, im := real(c), imag(c)
			a.linear[shifted] += (re*re + im*im) / (a.winPower * float64(a.cfg.SampleRate))
		}
		segments++
	}

	frame := &Frame{
		Device:    block.Device,
		Timestamp: block.Timestamp,
		Duration:  block.Duration(),
		BinWidth:  a.BinWidth(),
		Freqs:     a.freqs,
		Power:     make([]float64, n),
		Noise:     make([]float64, n),
		SNR:       make([]float64, n),
	}

	for k := range a.linear {
		p := a.linear[k] / float64(segments)
		if p < minPower {
			p = minPower
		}
		a.linear[k] = p
		frame.Power[k] = 10*math.Log10(p) + a.cfg.Calibration
	}

	primed := a.noise.primed()
	for k := range frame.Power {
		if primed {
			frame.Noise[k] = a.noise.floor(k)
		} else {
			frame.Noise[k] = frame.Power[k]
		}
		frame.SNR[k] = frame.Power[k] - frame.Noise[k]
	}

	a.noise.push(frame.Power)
	return frame, nil
}
