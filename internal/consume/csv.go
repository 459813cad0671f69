package consume

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anhofmann/radio-tracking/internal/tracking"
)

var signalHeader = []string{
	"Time",
	"Device",
	"Frequency",
	"Duration",
	"min (dBW)",
	"max (dBW)",
	"avg (dBW)",
	"std (dB)",
	"noise (dBW)",
	"snr (dB)",
}

var matchHeader = []string{
	"Time",
	"Frequency",
	"Duration",
	"Count",
	"Devices",
}

// CSVSink appends detections to a pair of semicolon-separated files in
// the given directory, one for signals and one for matched groups.
type CSVSink struct {
	signalFile *os.File
	matchFile  *os.File
	signalOut  *csv.Writer
	matchOut   *csv.Writer
}

// NewCSVSink creates the output files, named after the run start time.
func NewCSVSink(dir string, start time.Time) (*CSVSink, error) {
	prefix := start.UTC().Format("20060102_150405")

	signalFile, err := os.Create(filepath.Join(dir, fmt.Sprintf("%s_signals.csv", prefix)))
	if err != nil {
		return nil, fmt.Errorf("creating signals csv: %w", err)
	}

	matchFile, err := os.Create(filepath.Join(dir, fmt.Sprintf("%s_matched.csv", prefix)))
	if err != nil {
		_ = signalFile.Close()
		return nil, fmt.Errorf("creating matched csv: %w", err)
	}

	s := CSVSink{
		signalFile: signalFile,
		matchFile:  matchFile,
		signalOut:  csv.NewWriter(signalFile),
		matchOut:   csv.NewWriter(matchFile),
	}
	s.signalOut.Comma = ';'
	s.matchOut.Comma = ';'

	if err := s.signalOut.Write(signalHeader); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("writing signals header: %w", err)
	}
	if err := s.matchOut.Write(matchHeader); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("writing matched header: %w", err)
	}
	s.signalOut.Flush()
	s.matchOut.Flush()

	return &s, nil
}

func (s *CSVSink) PublishSignal(sig tracking.Signal) error {
	record := []string{
		sig.Time.UTC().Format(time.RFC3339Nano),
		sig.Device,
		strconv.FormatFloat(sig.Frequency, 'f', -1, 64),
		strconv.FormatFloat(sig.Duration.Seconds(), 'f', 6, 64),
		strconv.FormatFloat(sig.MinDBW, 'f', 2, 64),
		strconv.FormatFloat(sig.MaxDBW, 'f', 2, 64),
		strconv.FormatFloat(sig.AvgDBW, 'f', 2, 64),
		strconv.FormatFloat(sig.StdDB, 'f', 2, 64),
		strconv.FormatFloat(sig.NoiseDBW, 'f', 2, 64),
		strconv.FormatFloat(sig.SNRDB, 'f', 2, 64),
	}

	if err := s.signalOut.Write(record); err != nil {
		return fmt.Errorf("writing signal: %w", err)
	}
	s.signalOut.Flush()
	return s.signalOut.Error()
}

func (s *CSVSink) PublishMatch(m *tracking.MatchedSignal) error {
	record := []string{
		m.Time().UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(m.Frequency(), 'f', -1, 64),
		strconv.FormatFloat(m.Duration().Seconds(), 'f', 6, 64),
		strconv.Itoa(len(m.Members)),
		strings.Join(m.Devices(), ","),
	}

	if err := s.matchOut.Write(record); err != nil {
		return fmt.Errorf("writing match: %w", err)
	}
	s.matchOut.Flush()
	return s.matchOut.Error()
}

func (s *CSVSink) Close() error {
	s.signalOut.Flush()
	s.matchOut.Flush()

	return errors.Join(s.signalFile.Close(), s.matchFile.Close())
}
