package dsp

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultNoiseWindow is the number of recent frames the per-bin noise
// floor estimate trails over. Deep enough that a single pulse cannot pull
// the floor up to its own level, shallow enough to follow changing RF
// noise within seconds at typical block rates.
const DefaultNoiseWindow = 32

// noiseTracker estimates the per-bin noise floor as a trailing median of
// recent frame powers. The estimate for a frame never includes that
// frame itself; callers compute SNR first and push after.
type noiseTracker struct {
	bins  int
	depth int

	hist    [][]float64 // ring of depth frames, each bins wide, dBW
	count   int
	next    int
	scratch []float64
}

func newNoiseTracker(bins, depth int) *noiseTracker {
	if depth <= 0 {
		depth = DefaultNoiseWindow
	}
	hist := make([][]float64, depth)
	for i := range hist {
		hist[i] = make([]float64, bins)
	}
	return &noiseTracker{
		bins:    bins,
		depth:   depth,
		hist:    hist,
		scratch: make([]float64, depth),
	}
}

// primed reports whether at least one frame has been recorded.
func (n *noiseTracker) primed() bool {
	return n.count > 0
}

// floor returns the trailing median for the given bin in dBW.
func (n *noiseTracker) floor(bin int) float64 {
	frames := min(n.count, n.depth)
	scratch := n.scratch[:frames]
	for i := 0; i < frames; i++ {
		scratch[i] = n.hist[i][bin]
	}

	sort.Float64s(scratch)
	return stat.Quantile(0.5, stat.Empirical, scratch, nil)
}

// push records a frame's per-bin power, evicting the oldest frame once
// the ring is full.
func (n *noiseTracker) push(power []float64) {
	copy(n.hist[n.next], power)
	n.next = (n.next + 1) % n.depth
	n.count++
}
