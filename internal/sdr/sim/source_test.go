package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/anhofmann/radio-tracking/internal/sdr"
)

func testSimConfig() Config {
	return Config{
		CenterFreq:  150_100_000,
		SampleRate:  250_000,
		BlockLength: 25_000,
		ToneFreq:    150_150_000,
		ToneDBW:     -30,
		NoiseDBW:    -110,
		PulseLength: sdr.Duration(15 * time.Millisecond),
		PulseEvery:  sdr.Duration(100 * time.Millisecond),
	}
}

func readBlock(t *testing.T, s *Source) *sdr.SampleBlock {
	t.Helper()
	block, err := s.ReadBlock(context.Background())
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	return block
}

func TestSource_RequiresOpen(t *testing.T) {
	s, err := New(testSimConfig())
	if err != nil {
		t.Fatal(err)
	}

	if _, err = s.ReadBlock(context.Background()); err == nil {
		t.Error("expected an error reading a closed source")
	}

	if err = s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err = s.Open(context.Background()); err == nil {
		t.Error("expected an error on double open")
	}

	if err = s.Close(); err != nil {
		t.Fatal(err)
	}
	if err = s.Open(context.Background()); err != nil {
		t.Errorf("reopen after close failed: %v", err)
	}
}

func TestSource_BlockShape(t *testing.T) {
	cfg := testSimConfig()
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	block := readBlock(t, s)
	if len(block.Samples) != cfg.BlockLength {
		t.Errorf("block length = %d, want %d", len(block.Samples), cfg.BlockLength)
	}
	if block.SampleRate != cfg.SampleRate {
		t.Errorf("sample rate = %d, want %d", block.SampleRate, cfg.SampleRate)
	}
	if block.Duration() != 100*time.Millisecond {
		t.Errorf("block duration = %s, want 100ms", block.Duration())
	}
}

func TestSource_PulseEnergy(t *testing.T) {
	cfg := testSimConfig()
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The pulse occupies the first 15ms of every 100ms block, so the
	// pulse region must carry far more energy than the tail.
	block := readBlock(t, s)
	pulseSamples := 15 * cfg.SampleRate / 1000

	var pulse, quiet float64
	for i, sample := range block.Samples {
		p := real(sample)*real(sample) + imag(sample)*imag(sample)
		if i < pulseSamples {
			pulse += p
		} else {
			quiet += p
		}
	}
	pulse /= float64(pulseSamples)
	quiet /= float64(len(block.Samples) - pulseSamples)

	if ratio := 10 * math.Log10(pulse/quiet); ratio < 40 {
		t.Errorf("pulse to quiet ratio = %.1f dB, want at least 40", ratio)
	}
}

func TestSource_Deterministic(t *testing.T) {
	cfg := testSimConfig()

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_ = a.Open(context.Background())
	_ = b.Open(context.Background())

	blockA := readBlock(t, a)
	blockB := readBlock(t, b)
	for i := range blockA.Samples {
		if blockA.Samples[i] != blockB.Samples[i] {
			t.Fatalf("streams diverge at sample %d", i)
		}
	}
}

func TestSource_ScriptedOutcomes(t *testing.T) {
	cfg := testSimConfig()
	cfg.Script = []Step{StepError, StepOK, StepStall}

	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err = s.ReadBlock(context.Background()); err == nil {
		t.Fatal("expected the scripted error")
	}

	readBlock(t, s)

	// The stall step honours the read deadline the way unresponsive
	// hardware would.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err = s.ReadBlock(ctx); err != context.DeadlineExceeded {
		t.Fatalf("stalled read returned %v, want deadline exceeded", err)
	}

	// Script exhausted: reads are normal again, also across reopen.
	if err = s.Close(); err != nil {
		t.Fatal(err)
	}
	if err = s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	readBlock(t, s)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"tone outside band", func(c *Config) { c.ToneFreq = c.CenterFreq + 200_000 }},
		{"pulse longer than interval", func(c *Config) {
			c.PulseLength = sdr.Duration(200 * time.Millisecond)
		}},
		{"unknown script step", func(c *Config) { c.Script = []Step{"explode"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testSimConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
