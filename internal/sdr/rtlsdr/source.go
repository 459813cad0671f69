// Package rtlsdr implements a sample source backed by the rtl_sdr
// command-line tool. The subprocess streams raw unsigned 8-bit IQ pairs
// on stdout; a pump goroutine slices the stream into fixed-size blocks of
// complex samples and hands them to ReadBlock.
package rtlsdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/anhofmann/radio-tracking/internal/sdr"
)

const runtime = "rtl_sdr"

// ErrSourceClosed is returned by ReadBlock after the subprocess has
// terminated and its buffered blocks are drained.
var ErrSourceClosed = errors.New("rtlsdr: source closed")

// WithLogger sets the logger used for subprocess diagnostics.
func WithLogger(logger *slog.Logger) func(*Source) {
	return func(s *Source) {
		s.logger = logger
	}
}

// Source owns one rtl_sdr subprocess and the exclusive hardware handle
// behind it. Open and Close may be called repeatedly; the supervisor does
// so on every restart.
type Source struct {
	cfg     Config
	binPath string
	logger  *slog.Logger

	cmd    *exec.Cmd
	cancel context.CancelFunc
	blocks chan *sdr.SampleBlock
	errc   chan error
	wg     sync.WaitGroup
}

// New locates the rtl_sdr binary and prepares a source for the given
// configuration. No hardware is touched until Open.
func New(cfg Config, options ...func(*Source)) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BlockLength == 0 {
		cfg.BlockLength = cfg.SampleRate / 10
	}

	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return nil, fmt.Errorf("rtlsdr: finding runtime '%s': %w", runtime, err)
	}

	s := Source{
		cfg:     cfg,
		binPath: binPath,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Open starts the subprocess and begins pumping blocks.
func (s *Source) Open(ctx context.Context) error {
	if s.cmd != nil {
		return fmt.Errorf("rtlsdr: source already open")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, s.binPath, s.cfg.Args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.cancel()
		return fmt.Errorf("rtlsdr: creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.cancel()
		return fmt.Errorf("rtlsdr: creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		s.cancel()
		return fmt.Errorf("rtlsdr: starting command: %w", err)
	}

	s.cmd = cmd
	s.blocks = make(chan *sdr.SampleBlock, 2)
	s.errc = make(chan error, 1)

	s.wg.Add(2)
	go s.pumpStdout(ctx, stdout)
	go s.pumpStderr(stderr)

	return nil
}

// ReadBlock returns the next block from the subprocess.
func (s *Source) ReadBlock(ctx context.Context) (*sdr.SampleBlock, error) {
	if s.cmd == nil {
		return nil, fmt.Errorf("rtlsdr: source not open")
	}

	select {
	case block, ok := <-s.blocks:
		if !ok {
			select {
			case err := <-s.errc:
				return nil, err
			default:
				return nil, ErrSourceClosed
			}
		}
		return block, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close terminates the subprocess and releases the hardware handle.
func (s *Source) Close() error {
	if s.cmd == nil {
		return nil
	}

	s.cancel()
	err := s.cmd.Wait()
	s.wg.Wait()

	s.cmd = nil
	s.cancel = nil

	if err != nil && !errors.Is(err, context.Canceled) {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
			return nil // killed by cancellation
		}
		return fmt.Errorf("rtlsdr: command exited: %w", err)
	}
	return nil
}

// pumpStdout slices the raw IQ stream into blocks. rtl_sdr emits unsigned
// 8-bit I/Q pairs centred on 127.5.
func (s *Source) pumpStdout(ctx context.Context, stdout io.Reader) {
	defer s.wg.Done()
	defer close(s.blocks)

	reader := bufio.NewReaderSize(stdout, s.cfg.BlockLength*2)
	raw := make([]byte, s.cfg.BlockLength*2)

	for {
		if _, err := io.ReadFull(reader, raw); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, fs.ErrClosed) {
				s.errc <- fmt.Errorf("rtlsdr: reading stdout: %w", err)
			}
			return
		}

		block := &sdr.SampleBlock{
			Samples:    make([]complex128, s.cfg.BlockLength),
			SampleRate: s.cfg.SampleRate,
		}
		for i := range block.Samples {
			re := (float64(raw[2*i]) - 127.5) / 127.5
			im := (float64(raw[2*i+1]) - 127.5) / 127.5
			block.Samples[i] = complex(re, im)
		}

		select {
		case s.blocks <- block:
		case <-ctx.Done():
			return
		}
	}
}

// pumpStderr logs subprocess diagnostics.
func (s *Source) pumpStderr(stderr io.Reader) {
	defer s.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.logger.Debug(fmt.Sprintf("%s >> %s", runtime, line))
	}
}
