package tracking

import (
	"fmt"
	"time"
)

// Signal is a single detected tag pulse on one device. It is immutable
// once emitted by the segmenter; the matcher takes ownership after that.
type Signal struct {
	Device    string        // Device that detected the pulse
	Time      time.Time     // Start of the pulse
	Duration  time.Duration // End - start
	Frequency float64       // Center frequency in Hz
	Bandwidth float64       // Span of contiguous over-threshold bins in Hz

	MinDBW   float64 // Weakest bin power over the active span (dBW)
	MaxDBW   float64 // Peak bin power over the active span (dBW)
	AvgDBW   float64 // Mean bin power over the active span (dBW)
	StdDB    float64 // Standard deviation of the bin power (dB)
	NoiseDBW float64 // Estimated noise floor at detection time (dBW)
	SNRDB    float64 // MaxDBW - NoiseDBW (dB)
}

// End returns the end timestamp of the pulse.
func (s Signal) End() time.Time {
	return s.Time.Add(s.Duration)
}

// Mid returns the midpoint of the pulse, used for time-distance scoring.
func (s Signal) Mid() time.Time {
	return s.Time.Add(s.Duration / 2)
}

func (s Signal) String() string {
	return fmt.Sprintf("Signal<%s, %.6f MHz, %.2f ms, %.1f dBW>",
		s.Device, s.Frequency/1e6, float64(s.Duration.Microseconds())/1000, s.MaxDBW)
}

// MatchedSignal groups pulses from different devices that are close enough
// in time, frequency and duration to be the same physical transmission.
// A group holds at most one Signal per device.
type MatchedSignal struct {
	Members []Signal

	created      uint64    // creation sequence, used for deterministic tie-breaks
	lastActivity time.Time // start time of the most recently added member
}

// Time returns the earliest member start time.
func (m *MatchedSignal) Time() time.Time {
	ts := m.Members[0].Time
	for _, sig := range m.Members[1:] {
		if sig.Time.Before(ts) {
			ts = sig.Time
		}
	}
	return ts
}

// Duration returns the longest member duration.
func (m *MatchedSignal) Duration() time.Duration {
	d := m.Members[0].Duration
	for _, sig := range m.Members[1:] {
		if sig.Duration > d {
			d = sig.Duration
		}
	}
	return d
}

// Mid returns the midpoint of the group span.
func (m *MatchedSignal) Mid() time.Time {
	return m.Time().Add(m.Duration() / 2)
}

// Frequency returns the unweighted mean of the member frequencies.
func (m *MatchedSignal) Frequency() float64 {
	var sum float64
	for _, sig := range m.Members {
		sum += sig.Frequency
	}
	return sum / float64(len(m.Members))
}

// Devices returns the contributing device identifiers in member order.
func (m *MatchedSignal) Devices() []string {
	devices := make([]string, len(m.Members))
	for i, sig := range m.Members {
		devices[i] = sig.Device
	}
	return devices
}

func (m *MatchedSignal) hasDevice(device string) bool {
	for _, sig := range m.Members {
		if sig.Device == device {
			return true
		}
	}
	return false
}

func (m *MatchedSignal) String() string {
	return fmt.Sprintf("MatchedSignal<%s, %.6f MHz, members %v>",
		m.Mid().Format(time.RFC3339Nano), m.Frequency()/1e6, m.Devices())
}
