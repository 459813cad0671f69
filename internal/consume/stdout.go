package consume

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/anhofmann/radio-tracking/internal/tracking"
)

// StdoutSink writes one human-readable line per detection.
type StdoutSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutSink creates a sink writing to out.
func NewStdoutSink(out io.Writer) *StdoutSink {
	return &StdoutSink{out: out}
}

func (s *StdoutSink) PublishSignal(sig tracking.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.out, "%s  %-12s %sHz  %6.2f ms  %6.1f dBW  %5.1f dB SNR\n",
		sig.Time.Format(time.RFC3339Nano),
		sig.Device,
		humanize.SIWithDigits(sig.Frequency, 3, ""),
		float64(sig.Duration.Microseconds())/1000,
		sig.MaxDBW,
		sig.SNRDB,
	)
	return err
}

func (s *StdoutSink) PublishMatch(m *tracking.MatchedSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.out, "%s  matched      %sHz  %6.2f ms  %d member(s): %s\n",
		m.Time().Format(time.RFC3339Nano),
		humanize.SIWithDigits(m.Frequency(), 3, ""),
		float64(m.Duration().Microseconds())/1000,
		len(m.Members),
		strings.Join(m.Devices(), ", "),
	)
	return err
}

func (s *StdoutSink) Close() error {
	return nil
}
