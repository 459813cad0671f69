package sdr

import (
	"context"
	"time"
)

// SampleBlock is a fixed-size chunk of complex baseband samples delivered
// by a Source. It is immutable once produced and owned exclusively by the
// processing chain of its device until consumed.
type SampleBlock struct {
	Device     string       // Device identifier
	Index      uint64       // Sequence index, assigned by the supervisor
	Samples    []complex128 // Baseband samples
	SampleRate int          // Samples per second
}

// Duration returns the nominal wall-clock duration covered by the block.
func (b *SampleBlock) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Block is a SampleBlock stamped with its derived absolute start time.
type Block struct {
	*SampleBlock
	Timestamp time.Time
}

// Source delivers sample blocks from a physical or virtual receiver.
// ReadBlock blocks until a full block is available, the context expires,
// or the source dies. Implementations must honour context cancellation;
// the supervisor applies a per-read deadline to detect stalled hardware.
type Source interface {
	Open(ctx context.Context) error
	ReadBlock(ctx context.Context) (*SampleBlock, error)
	Close() error
}
