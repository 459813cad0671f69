// Package tracking correlates per-device signal streams into matched
// detections. Matching augments single-device output, it never gates it:
// a pulse seen by one receiver alone is still emitted, just unmatched.
package tracking

import (
	"fmt"
	"math"
	"time"
)

// MatcherConfig holds the correlation tolerances.
type MatcherConfig struct {
	Timeout      time.Duration // Close a group once idle this long
	TimeDiff     time.Duration // Maximum gap between member spans
	BandwidthHz  float64       // Maximum distance from the group frequency
	DurationDiff time.Duration // Maximum duration difference, 0 = unconstrained
}

func (c *MatcherConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("tracking: matching timeout must be positive, got %s", c.Timeout)
	}
	if c.TimeDiff <= 0 {
		return fmt.Errorf("tracking: matching time tolerance must be positive, got %s", c.TimeDiff)
	}
	if c.BandwidthHz <= 0 {
		return fmt.Errorf("tracking: matching bandwidth must be positive, got %f", c.BandwidthHz)
	}
	if c.DurationDiff < 0 {
		return fmt.Errorf("tracking: matching duration tolerance must not be negative, got %s", c.DurationDiff)
	}
	return nil
}

// Matcher maintains the working set of open groups. It is a single
// logical consumer: calls must be serialized by the owner. Matching work
// per signal is linear in the number of open groups, which stays small
// because groups time out after one matching window.
type Matcher struct {
	cfg  MatcherConfig
	open []*MatchedSignal
	seq  uint64
}

// NewMatcher creates a matcher. The configuration must have been
// validated at startup.
func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// Add routes a signal into a compatible open group or opens a new one,
// and returns the groups closed by the accompanying timeout sweep. The
// sweep runs before the signal is considered, so a group that has been
// idle past the timeout can never absorb a late arrival.
func (m *Matcher) Add(sig Signal) []*MatchedSignal {
	closed := m.sweep(sig.Time)

	best := -1
	bestScore := math.Inf(1)
	for i, group := range m.open {
		if !m.compatible(group, sig) {
			continue
		}
		// Strict less keeps the first, i.e. earliest-created, group on
		// ties; the open set is ordered by creation.
		if score := m.score(group, sig); score < bestScore {
			best = i
			bestScore = score
		}
	}

	if best >= 0 {
		group := m.open[best]
		group.Members = append(group.Members, sig)
		if sig.Time.After(group.lastActivity) {
			group.lastActivity = sig.Time
		}
		return closed
	}

	m.seq++
	m.open = append(m.open, &MatchedSignal{
		Members:      []Signal{sig},
		created:      m.seq,
		lastActivity: sig.Time,
	})
	return closed
}

// Flush closes and returns all remaining open groups. Called on shutdown
// so in-flight groups are emitted rather than dropped.
func (m *Matcher) Flush() []*MatchedSignal {
	closed := m.open
	m.open = nil
	return closed
}

// OpenGroups returns the current number of open groups.
func (m *Matcher) OpenGroups() int {
	return len(m.open)
}

// sweep closes every group whose last activity is older than the timeout
// relative to now.
func (m *Matcher) sweep(now time.Time) []*MatchedSignal {
	var closed []*MatchedSignal
	remaining := m.open[:0]
	for _, group := range m.open {
		if now.Sub(group.lastActivity) > m.cfg.Timeout {
			closed = append(closed, group)
			continue
		}
		remaining = append(remaining, group)
	}
	m.open = remaining
	return closed
}

func (m *Matcher) compatible(group *MatchedSignal, sig Signal) bool {
	if group.hasDevice(sig.Device) {
		return false
	}

	if math.Abs(group.Frequency()-sig.Frequency) > m.cfg.BandwidthHz {
		return false
	}

	// Spans may be disjoint by at most the time tolerance.
	if sig.Time.Sub(group.Time().Add(group.Duration())) > m.cfg.TimeDiff {
		return false
	}
	if group.Time().Sub(sig.End()) > m.cfg.TimeDiff {
		return false
	}

	if m.cfg.DurationDiff > 0 {
		diff := group.Duration() - sig.Duration
		if diff < 0 {
			diff = -diff
		}
		if diff > m.cfg.DurationDiff {
			return false
		}
	}

	return true
}

// score combines time and frequency distance, each normalized by its
// tolerance, so neither dimension dominates.
func (m *Matcher) score(group *MatchedSignal, sig Signal) float64 {
	dt := math.Abs(float64(sig.Mid().Sub(group.Mid()))) / float64(m.cfg.TimeDiff)
	df := math.Abs(sig.Frequency-group.Frequency()) / m.cfg.BandwidthHz
	return dt + df
}
