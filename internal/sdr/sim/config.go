package sim

import (
	"fmt"

	"github.com/anhofmann/radio-tracking/internal/sdr"
)

// Step names a scripted read outcome. A script lets a synthetic receiver
// misbehave on cue so supervisor recovery paths can be exercised without
// hardware.
type Step string

const (
	StepOK    Step = "ok"    // Deliver the block normally
	StepStall Step = "stall" // Block until the read deadline fires
	StepError Step = "error" // Fail the read immediately
)

// Config describes a synthetic receiver emitting periodic tone pulses,
// used for bench runs without hardware and to exercise the pipeline in
// tests.
type Config struct {
	CenterFreq  float64      `yaml:"centerFreq"`  // Tuned center frequency in Hz
	SampleRate  int          `yaml:"sampleRate"`  // Samples per second
	BlockLength int          `yaml:"blockLength"` // Samples per block, default one tenth of the sample rate
	ToneFreq    float64      `yaml:"toneFreq"`    // Absolute pulse frequency in Hz
	ToneDBW     float64      `yaml:"toneDBW"`     // Pulse power in dBW
	NoiseDBW    float64      `yaml:"noiseDBW"`    // Noise floor in dBW
	PulseLength sdr.Duration `yaml:"pulseLength"` // Duration of each pulse
	PulseEvery  sdr.Duration `yaml:"pulseEvery"`  // Pulse repetition interval
	Realtime    bool         `yaml:"realtime"`    // Pace block delivery at the sample rate
	Script      []Step       `yaml:"script"`      // Scripted read outcomes, consumed one per read
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sim: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.BlockLength < 0 {
		return fmt.Errorf("sim: block length must not be negative, got %d", c.BlockLength)
	}
	offset := c.ToneFreq - c.CenterFreq
	if offset < -float64(c.SampleRate)/2 || offset > float64(c.SampleRate)/2 {
		return fmt.Errorf("sim: tone frequency %.0f Hz outside the sampled band", c.ToneFreq)
	}
	if c.PulseEvery > 0 && c.PulseLength >= c.PulseEvery {
		return fmt.Errorf("sim: pulse length %s must be shorter than the interval %s", c.PulseLength, c.PulseEvery)
	}
	for _, step := range c.Script {
		switch step {
		case StepOK, StepStall, StepError:
		default:
			return fmt.Errorf("sim: unknown script step '%s'", step)
		}
	}
	return nil
}
