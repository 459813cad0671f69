package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Timeout:     2 * time.Second,
		TimeDiff:    200 * time.Millisecond,
		BandwidthHz: 8000,
	}
}

func testSignal(device string, at time.Time, freq float64) Signal {
	return Signal{
		Device:    device,
		Time:      at,
		Duration:  15 * time.Millisecond,
		Frequency: freq,
		Bandwidth: 1000,
		MaxDBW:    -60,
		AvgDBW:    -62,
		MinDBW:    -65,
		NoiseDBW:  -110,
		SNRDB:     50,
	}
}

func TestMatcher_PairsSignalsAcrossDevices(t *testing.T) {
	m := NewMatcher(testMatcherConfig())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.Empty(t, m.Add(testSignal("sdr0", at, 150_000_000)))
	require.Empty(t, m.Add(testSignal("sdr1", at.Add(5*time.Millisecond), 150_001_000)))
	require.Equal(t, 1, m.OpenGroups())

	groups := m.Flush()
	require.Len(t, groups, 1)

	g := groups[0]
	require.Len(t, g.Members, 2)
	assert.ElementsMatch(t, []string{"sdr0", "sdr1"}, g.Devices())
	assert.True(t, g.Time().Equal(at))
	assert.Equal(t, 15*time.Millisecond, g.Duration())
	assert.InDelta(t, 150_000_500, g.Frequency(), 1e-6)
}

func TestMatcher_BandwidthBoundary(t *testing.T) {
	cfg := testMatcherConfig()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Differing by exactly the tolerance still matches.
	m := NewMatcher(cfg)
	m.Add(testSignal("sdr0", at, 150_000_000))
	m.Add(testSignal("sdr1", at, 150_000_000+cfg.BandwidthHz))
	assert.Equal(t, 1, m.OpenGroups())

	// One hertz beyond opens a second group.
	m = NewMatcher(cfg)
	m.Add(testSignal("sdr0", at, 150_000_000))
	m.Add(testSignal("sdr1", at, 150_000_000+cfg.BandwidthHz+1))
	assert.Equal(t, 2, m.OpenGroups())
}

func TestMatcher_TimeGapBoundary(t *testing.T) {
	cfg := testMatcherConfig()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// A gap of exactly the tolerance between spans still matches.
	m := NewMatcher(cfg)
	first := testSignal("sdr0", at, 150_000_000)
	m.Add(first)
	m.Add(testSignal("sdr1", first.End().Add(cfg.TimeDiff), 150_000_000))
	assert.Equal(t, 1, m.OpenGroups())

	m = NewMatcher(cfg)
	m.Add(first)
	m.Add(testSignal("sdr1", first.End().Add(cfg.TimeDiff+time.Nanosecond), 150_000_000))
	assert.Equal(t, 2, m.OpenGroups())
}

func TestMatcher_SameDeviceNeverMatches(t *testing.T) {
	m := NewMatcher(testMatcherConfig())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Add(testSignal("sdr0", at, 150_000_000))
	m.Add(testSignal("sdr0", at.Add(time.Millisecond), 150_000_000))
	assert.Equal(t, 2, m.OpenGroups())
}

func TestMatcher_SweepRunsBeforeMatching(t *testing.T) {
	m := NewMatcher(testMatcherConfig())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Add(testSignal("sdr0", at, 150_000_000))

	// The late arrival would be compatible on frequency alone, but the
	// group has been idle past the timeout and must close first.
	closed := m.Add(testSignal("sdr1", at.Add(3*time.Second), 150_000_000))
	require.Len(t, closed, 1)
	require.Len(t, closed[0].Members, 1)
	assert.Equal(t, "sdr0", closed[0].Members[0].Device)
	assert.Equal(t, 1, m.OpenGroups())
}

func TestMatcher_SingleMemberGroupsAreEmitted(t *testing.T) {
	m := NewMatcher(testMatcherConfig())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Add(testSignal("sdr0", at, 150_000_000))
	groups := m.Flush()
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 1)
	assert.Equal(t, 0, m.OpenGroups())
}

func TestMatcher_PicksClosestGroup(t *testing.T) {
	m := NewMatcher(testMatcherConfig())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Add(testSignal("sdr0", at, 150_000_000))
	m.Add(testSignal("sdr1", at, 150_006_000))

	// Compatible with both, but much closer to the second group.
	m.Add(testSignal("sdr2", at, 150_005_000))
	require.Equal(t, 2, m.OpenGroups())

	groups := m.Flush()
	require.Len(t, groups[1].Members, 2)
	assert.ElementsMatch(t, []string{"sdr1", "sdr2"}, groups[1].Devices())
}

func TestMatcher_TieBreaksToEarliestGroup(t *testing.T) {
	m := NewMatcher(testMatcherConfig())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Add(testSignal("sdr0", at, 150_000_000))
	m.Add(testSignal("sdr1", at, 150_004_000))

	// Equidistant in frequency and identical in time: the earlier
	// group wins.
	m.Add(testSignal("sdr2", at, 150_002_000))

	groups := m.Flush()
	require.Len(t, groups, 2)
	assert.ElementsMatch(t, []string{"sdr0", "sdr2"}, groups[0].Devices())
	assert.Len(t, groups[1].Members, 1)
}

func TestMatcher_DurationConstraint(t *testing.T) {
	cfg := testMatcherConfig()
	cfg.DurationDiff = 5 * time.Millisecond
	m := NewMatcher(cfg)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Add(testSignal("sdr0", at, 150_000_000))

	long := testSignal("sdr1", at, 150_000_000)
	long.Duration = 40 * time.Millisecond
	m.Add(long)
	assert.Equal(t, 2, m.OpenGroups())
}

func TestMatcherConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatcherConfig)
		wantErr bool
	}{
		{"valid", func(c *MatcherConfig) {}, false},
		{"zero timeout", func(c *MatcherConfig) { c.Timeout = 0 }, true},
		{"zero time tolerance", func(c *MatcherConfig) { c.TimeDiff = 0 }, true},
		{"zero bandwidth", func(c *MatcherConfig) { c.BandwidthHz = 0 }, true},
		{"negative duration tolerance", func(c *MatcherConfig) { c.DurationDiff = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testMatcherConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
