// Package detect segments spectrogram frames into bounded signal events.
// A per-bin state machine turns consecutive over-threshold frames into
// pulses; closures of adjacent bins covering the same span are coalesced
// so a single tag pulse that bleeds across FFT bins is counted once.
package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/anhofmann/radio-tracking/internal/dsp"
	"github.com/anhofmann/radio-tracking/internal/tracking"
)

// Config bounds what counts as a signal.
type Config struct {
	ThresholdDBW   float64       // Absolute power threshold
	SNRThresholdDB float64       // SNR threshold over the noise floor
	MinDuration    time.Duration // Shorter runs are discarded
	MaxDuration    time.Duration // Longer runs are force-closed and truncated
}

func (c *Config) Validate() error {
	if c.MinDuration <= 0 {
		return fmt.Errorf("detect: min duration must be positive, got %s", c.MinDuration)
	}
	if c.MaxDuration < c.MinDuration {
		return fmt.Errorf("detect: max duration %s shorter than min duration %s", c.MaxDuration, c.MinDuration)
	}
	if c.SNRThresholdDB < 0 {
		return fmt.Errorf("detect: snr threshold must not be negative, got %f", c.SNRThresholdDB)
	}
	return nil
}

// binState is the detection state of one frequency bin. Bins are plain
// records updated in place per frame; the whole array lives in one
// allocation for cache locality.
type binState struct {
	active bool
	start  time.Time
	end    time.Time // end of the last over-threshold frame

	frames   int
	peak     float64 // max bin power, dBW
	low      float64 // min bin power, dBW
	sum      float64 // sum of bin power, dBW
	sumSq    float64
	noiseSum float64 // sum of floor estimates, dBW
}

// closure is a per-bin segment that ended in the current frame.
type closure struct {
	bin   int
	state binState
}

// Segmenter tracks one device's bins across frames.
type Segmenter struct {
	device string
	cfg    Config

	bins    []binState
	pending []closure // scratch, reused across frames
}

// NewSegmenter creates a segmenter. The bin count is taken from the
// first frame fed.
func NewSegmenter(device string, cfg Config) *Segmenter {
	return &Segmenter{device: device, cfg: cfg}
}

// Feed advances every bin's state machine by one frame and returns the
// signals whose detection runs closed in this frame. Segments outside the
// configured duration bounds are discarded silently; that is expected
// filtering, not an error.
func (s *Segmenter) Feed(frame *dsp.Frame) []tracking.Signal {
	if s.bins == nil {
		s.bins = make([]binState, len(frame.Power))
	}

	s.pending = s.pending[:0]
	frameEnd := frame.Timestamp.Add(frame.Duration)

	for i := range s.bins {
		bin := &s.bins[i]
		over := frame.Power[i] >= s.cfg.ThresholdDBW && frame.SNR[i] >= s.cfg.SNRThresholdDB

		switch {
		case !bin.active && over:
			*bin = binState{
				active: true,
				start:  frame.Timestamp,
				end:    frameEnd,
				frames: 1,
				peak:   frame.Power[i],
				low:    frame.Power[i],
				sum:    frame.Power[i],
				sumSq:  frame.Power[i] * frame.Power[i],

				noiseSum: frame.Noise[i],
			}

		case bin.active && over:
			bin.end = frameEnd
			bin.frames++
			bin.peak = math.Max(bin.peak, frame.Power[i])
			bin.low = math.Min(bin.low, frame.Power[i])
			bin.sum += frame.Power[i]
			bin.sumSq += frame.Power[i] * frame.Power[i]
			bin.noiseSum += frame.Noise[i]

			// Bound runaway segments from carriers or stuck bins.
			if bin.end.Sub(bin.start) >= s.cfg.MaxDuration {
				truncated := *bin
				truncated.end = truncated.start.Add(s.cfg.MaxDuration)
				s.pending = append(s.pending, closure{bin: i, state: truncated})
				bin.active = false
			}

		case bin.active && !over:
			s.pending = append(s.pending, closure{bin: i, state: *bin})
			bin.active = false
		}
	}

	return s.coalesce(frame)
}

// coalesce merges closures of adjacent bins with overlapping spans into
// one signal per physical pulse, then applies the duration filter.
func (s *Segmenter) coalesce(frame *dsp.Frame) []tracking.Signal {
	if len(s.pending) == 0 {
		return nil
	}

	var signals []tracking.Signal

	group := []closure{s.pending[0]}
	for _, c := range s.pending[1:] {
		last := group[len(group)-1]
		if c.bin == last.bin+1 && spansOverlap(c.state, last.state) {
			group = append(group, c)
			continue
		}
		if sig, ok := s.emit(group, frame); ok {
			signals = append(signals, sig)
		}
		group = group[:0]
		group = append(group, c)
	}
	if sig, ok := s.emit(group, frame); ok {
		signals = append(signals, sig)
	}

	return signals
}

// emit folds a group of coalesced bin closures into one Signal, or
// reports false when the merged duration falls outside the bounds.
func (s *Segmenter) emit(group []closure, frame *dsp.Frame) (tracking.Signal, bool) {
	merged := group[0].state
	peakBin := group[0].bin
	frames := merged.frames
	sum, sumSq, noiseSum := merged.sum, merged.sumSq, merged.noiseSum

	for _, c := range group[1:] {
		if c.state.start.Before(merged.start) {
			merged.start = c.state.start
		}
		if c.state.end.After(merged.end) {
			merged.end = c.state.end
		}
		if c.state.peak > merged.peak {
			merged.peak = c.state.peak
			peakBin = c.bin
		}
		merged.low = math.Min(merged.low, c.state.low)
		frames += c.state.frames
		sum += c.state.sum
		sumSq += c.state.sumSq
		noiseSum += c.state.noiseSum
	}

	duration := merged.end.Sub(merged.start)
	if duration < s.cfg.MinDuration {
		return tracking.Signal{}, false
	}
	if duration > s.cfg.MaxDuration {
		duration = s.cfg.MaxDuration
	}

	avg := sum / float64(frames)
	variance := sumSq/float64(frames) - avg*avg
	if variance < 0 {
		variance = 0
	}
	noise := noiseSum / float64(frames)

	return tracking.Signal{
		Device:    s.device,
		Time:      merged.start,
		Duration:  duration,
		Frequency: frame.Freqs[peakBin],
		Bandwidth: float64(len(group)) * frame.BinWidth,
		MinDBW:    merged.low,
		MaxDBW:    merged.peak,
		AvgDBW:    avg,
		StdDB:     math.Sqrt(variance),
		NoiseDBW:  noise,
		SNRDB:     merged.peak - noise,
	}, true
}

func spansOverlap(a, b binState) bool {
	return !a.start.After(b.end) && !b.start.After(a.end)
}
