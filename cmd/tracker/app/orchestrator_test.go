package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhofmann/radio-tracking/internal/consume"
	"github.com/anhofmann/radio-tracking/internal/detect"
	"github.com/anhofmann/radio-tracking/internal/dsp"
	"github.com/anhofmann/radio-tracking/internal/sdr"
	"github.com/anhofmann/radio-tracking/internal/sdr/sim"
	"github.com/anhofmann/radio-tracking/internal/tracking"
)

// captureSink records everything published to it.
type captureSink struct {
	mu      sync.Mutex
	signals []tracking.Signal
	matches []*tracking.MatchedSignal
}

func (s *captureSink) PublishSignal(sig tracking.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}

func (s *captureSink) PublishMatch(m *tracking.MatchedSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, m)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) captured() ([]tracking.Signal, []*tracking.MatchedSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tracking.Signal(nil), s.signals...),
		append([]*tracking.MatchedSignal(nil), s.matches...)
}

// delayedSource starts delivering a fixed interval after the other
// devices, standing in for receivers whose clocks are slightly apart.
type delayedSource struct {
	sdr.Source
	delay time.Duration
}

func (s *delayedSource) Open(ctx context.Context) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Source.Open(ctx)
}

// Two simulated receivers hear the same periodic tag pulse, their clocks
// 5ms apart; the pipeline must detect the pulse on each and pair the
// detections across devices within a tight matching window.
func TestOrchestrator_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("realtime pipeline test")
	}

	simConfig := sim.Config{
		CenterFreq:  150_100_000,
		SampleRate:  250_000,
		BlockLength: 2_500, // 10ms frames
		ToneFreq:    150_150_000,
		ToneDBW:     -30,
		NoiseDBW:    -110,
		PulseLength: sdr.Duration(15 * time.Millisecond),
		PulseEvery:  sdr.Duration(100 * time.Millisecond),
		Realtime:    true,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &captureSink{}
	dispatcher := consume.NewDispatcher(consume.WithLogger(logger))
	dispatcher.Add("capture", sink)
	dispatcher.Start()

	matcher := tracking.NewMatcher(tracking.MatcherConfig{
		Timeout:     500 * time.Millisecond,
		TimeDiff:    10 * time.Millisecond,
		BandwidthHz: 8_000,
	})
	buffer := tracking.NewReorderBuffer(100 * time.Millisecond)
	orchestrator := NewOrchestrator(matcher, buffer, dispatcher, logger)

	segCfg := detect.Config{
		ThresholdDBW:   -70,
		SNRThresholdDB: 10,
		MinDuration:    10 * time.Millisecond,
		MaxDuration:    50 * time.Millisecond,
	}
	for i, name := range []string{"sim0", "sim1"} {
		var source sdr.Source
		simSource, err := sim.New(simConfig)
		require.NoError(t, err)
		source = simSource
		if i == 1 {
			source = &delayedSource{Source: simSource, delay: 5 * time.Millisecond}
		}

		analyzer, err := dsp.NewAnalyzer(dsp.Config{
			Device:     name,
			CenterFreq: simConfig.CenterFreq,
			SampleRate: simConfig.SampleRate,
			NPerSeg:    256,
			Window:     dsp.WindowHann,
		})
		require.NoError(t, err)

		device := sdr.NewDevice(name, simConfig.SampleRate, source, sdr.WithLogger(logger))
		orchestrator.AddChain(device, analyzer, detect.NewSegmenter(name, segCfg))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	require.NoError(t, orchestrator.Run(ctx))
	require.NoError(t, dispatcher.Close())

	signals, matches := sink.captured()
	require.NotEmpty(t, signals, "no pulses detected")
	require.NotEmpty(t, matches, "no cross-device matches")

	for _, sig := range signals {
		assert.InDelta(t, simConfig.ToneFreq, sig.Frequency, 4_000)
		assert.GreaterOrEqual(t, sig.Duration, segCfg.MinDuration)
		assert.LessOrEqual(t, sig.Duration, segCfg.MaxDuration)
		assert.Greater(t, sig.SNRDB, 10.0)
	}

	var paired bool
	for _, m := range matches {
		devices := m.Devices()
		if len(devices) == 2 {
			paired = true
			assert.ElementsMatch(t, []string{"sim0", "sim1"}, devices)
			assert.InDelta(t, simConfig.ToneFreq, m.Frequency(), 4_000)
		}
	}
	assert.True(t, paired, "expected at least one two-device match")
}

// A device that stalls on its first read is restarted by the supervisor
// and the pipeline keeps producing detections afterwards.
func TestOrchestrator_RecoversFromStalledDevice(t *testing.T) {
	if testing.Short() {
		t.Skip("realtime pipeline test")
	}

	simConfig := sim.Config{
		CenterFreq:  150_100_000,
		SampleRate:  250_000,
		BlockLength: 2_500,
		ToneFreq:    150_150_000,
		ToneDBW:     -30,
		NoiseDBW:    -110,
		PulseLength: sdr.Duration(15 * time.Millisecond),
		PulseEvery:  sdr.Duration(100 * time.Millisecond),
		Realtime:    true,
		Script:      []sim.Step{sim.StepStall},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &captureSink{}
	dispatcher := consume.NewDispatcher(consume.WithLogger(logger))
	dispatcher.Add("capture", sink)
	dispatcher.Start()

	matcher := tracking.NewMatcher(tracking.MatcherConfig{
		Timeout:     500 * time.Millisecond,
		TimeDiff:    10 * time.Millisecond,
		BandwidthHz: 8_000,
	})
	orchestrator := NewOrchestrator(matcher, tracking.NewReorderBuffer(100*time.Millisecond), dispatcher, logger)

	source, err := sim.New(simConfig)
	require.NoError(t, err)

	analyzer, err := dsp.NewAnalyzer(dsp.Config{
		Device:     "sim0",
		CenterFreq: simConfig.CenterFreq,
		SampleRate: simConfig.SampleRate,
		NPerSeg:    256,
		Window:     dsp.WindowHann,
	})
	require.NoError(t, err)

	device := sdr.NewDevice("sim0", simConfig.SampleRate, source,
		sdr.WithLogger(logger),
		sdr.WithReadTimeout(50*time.Millisecond))
	orchestrator.AddChain(device, analyzer, detect.NewSegmenter("sim0", detect.Config{
		ThresholdDBW:   -70,
		SNRThresholdDB: 10,
		MinDuration:    10 * time.Millisecond,
		MaxDuration:    50 * time.Millisecond,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()

	require.NoError(t, orchestrator.Run(ctx))
	require.NoError(t, dispatcher.Close())

	signals, _ := sink.captured()
	assert.NotEmpty(t, signals, "no pulses detected after restart")
	assert.Equal(t, 1, device.Restarts())
}

func TestOrchestrator_NoChains(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := consume.NewDispatcher()
	dispatcher.Start()
	defer dispatcher.Close()

	matcher := tracking.NewMatcher(tracking.MatcherConfig{
		Timeout:     time.Second,
		TimeDiff:    time.Millisecond,
		BandwidthHz: 1,
	})
	orchestrator := NewOrchestrator(matcher, tracking.NewReorderBuffer(0), dispatcher, logger)
	assert.Error(t, orchestrator.Run(context.Background()))
}
