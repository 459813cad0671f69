// Package sim provides a synthetic sample source producing tone pulses
// over a gaussian noise floor. It implements the same Source contract as
// the hardware-backed sources and is the reference input for pipeline
// tests and bench runs.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"time"

	"github.com/anhofmann/radio-tracking/internal/sdr"
)

// Source generates complex baseband blocks with periodic tone pulses.
type Source struct {
	cfg  Config
	rng  *rand.Rand
	open bool

	sample uint64 // absolute sample position across blocks
	phase  float64
	step   int // script position, survives reopen so a stall leads into recovery
}

// New creates a synthetic source. The generator is seeded deterministically
// from the configuration so repeated runs produce the same sample stream.
func New(cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BlockLength == 0 {
		cfg.BlockLength = cfg.SampleRate / 10
	}

	seed := int64(cfg.SampleRate) ^ int64(cfg.ToneFreq) ^ int64(cfg.CenterFreq)
	return &Source{cfg: cfg, rng: rand.New(rand.NewSource(seed))}, nil
}

func (s *Source) Open(ctx context.Context) error {
	if s.open {
		return fmt.Errorf("sim: source already open")
	}
	s.open = true
	return nil
}

func (s *Source) Close() error {
	s.open = false
	return nil
}

// ReadBlock synthesizes the next block. In realtime mode delivery is paced
// to the nominal block duration.
func (s *Source) ReadBlock(ctx context.Context) (*sdr.SampleBlock, error) {
	if !s.open {
		return nil, fmt.Errorf("sim: source not open")
	}

	if s.step < len(s.cfg.Script) {
		step := s.cfg.Script[s.step]
		s.step++

		switch step {
		case StepStall:
			<-ctx.Done()
			return nil, ctx.Err()
		case StepError:
			return nil, fmt.Errorf("sim: scripted device error")
		}
	}

	block := &sdr.SampleBlock{
		Samples:    make([]complex128, s.cfg.BlockLength),
		SampleRate: s.cfg.SampleRate,
	}

	if s.cfg.Realtime {
		select {
		case <-time.After(block.Duration()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.fill(block.Samples)
	return block, nil
}

// fill renders noise plus the tone pulse train into dst. Amplitudes follow
// from the configured dBW levels with the tone offset mixed against the
// tuned center.
func (s *Source) fill(dst []complex128) {
	noiseAmp := math.Sqrt(math.Pow(10, s.cfg.NoiseDBW/10))
	toneAmp := math.Sqrt(math.Pow(10, s.cfg.ToneDBW/10))
	offset := s.cfg.ToneFreq - s.cfg.CenterFreq
	phaseInc := 2 * math.Pi * offset / float64(s.cfg.SampleRate)

	pulseSamples := uint64(float64(s.cfg.PulseLength.Std()) / float64(time.Second) * float64(s.cfg.SampleRate))
	periodSamples := uint64(float64(s.cfg.PulseEvery.Std()) / float64(time.Second) * float64(s.cfg.SampleRate))

	for i := range dst {
		re := s.rng.NormFloat64() * noiseAmp / math.Sqrt2
		im := s.rng.NormFloat64() * noiseAmp / math.Sqrt2
		dst[i] = complex(re, im)

		if pulseSamples > 0 {
			pos := s.sample
			if periodSamples > 0 {
				pos = s.sample % periodSamples
			}
			if pos < pulseSamples {
				dst[i] += cmplx.Rect(toneAmp, s.phase)
			}
		}

		s.phase += phaseInc
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
		s.sample++
	}
}
