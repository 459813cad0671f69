package rtlsdr

import (
	"fmt"
	"strconv"
)

const (
	sampleRateMin = 225_001
	sampleRateMax = 3_200_000
)

// Config describes an RTL-SDR receiver driven through the rtl_sdr
// command-line tool streaming raw 8-bit IQ to stdout.
type Config struct {
	DeviceIndex int     `yaml:"deviceIndex"` // librtlsdr device index
	CenterFreq  float64 `yaml:"centerFreq"`  // Tuned center frequency in Hz
	SampleRate  int     `yaml:"sampleRate"`  // Samples per second
	Gain        float64 `yaml:"gain"`        // Tuner gain in dB, 0 selects automatic gain
	BlockLength int     `yaml:"blockLength"` // Samples per block, default one tenth of the sample rate
	BiasTee     bool    `yaml:"biasTee"`     // Enable bias tee power on supported dongles
}

func (c *Config) Validate() error {
	if c.DeviceIndex < 0 {
		return fmt.Errorf("rtlsdr: device index must not be negative, got %d", c.DeviceIndex)
	}
	if c.CenterFreq <= 0 {
		return fmt.Errorf("rtlsdr: center frequency must be positive, got %f", c.CenterFreq)
	}
	if c.SampleRate < sampleRateMin || c.SampleRate > sampleRateMax {
		return fmt.Errorf("rtlsdr: unsupported sample rate %d, must be within [%d, %d]",
			c.SampleRate, sampleRateMin, sampleRateMax)
	}
	if c.BlockLength < 0 {
		return fmt.Errorf("rtlsdr: block length must not be negative, got %d", c.BlockLength)
	}
	return nil
}

// Args builds the rtl_sdr command line. The trailing "-" selects stdout
// output.
func (c *Config) Args() []string {
	args := []string{
		"-d", strconv.Itoa(c.DeviceIndex),
		"-f", strconv.FormatFloat(c.CenterFreq, 'f', 0, 64),
		"-s", strconv.Itoa(c.SampleRate),
	}
	if c.Gain > 0 {
		args = append(args, "-g", strconv.FormatFloat(c.Gain, 'f', 1, 64))
	}
	if c.BiasTee {
		args = append(args, "-T")
	}
	return append(args, "-")
}
