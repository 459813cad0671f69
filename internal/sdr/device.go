package sdr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	// DefaultReadTimeout is how long a block read may take before the
	// device is considered unresponsive.
	DefaultReadTimeout = 10 * time.Second

	// DefaultMaxRestarts is the lifetime restart budget per device.
	DefaultMaxRestarts = 3
)

// ErrDeviceFailed is returned by Run when the restart budget is exhausted
// and the device is marked failed for the remainder of the process.
var ErrDeviceFailed = errors.New("device failed permanently")

// State is the supervisor state of a device.
type State int32

const (
	Starting State = iota
	Running
	Restarting
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Restarting:
		return "restarting"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// EventKind identifies an observability event emitted by a device.
type EventKind int

const (
	EventRestart EventKind = iota
	EventFailed
	EventResync
)

// Event is a structured observability record. Events are emitted to the
// configured monitor and logged; the core never parses them back.
type Event struct {
	Device   string
	Kind     EventKind
	Restarts int
	Drift    time.Duration
	Err      error
}

// WithLogger sets the logger for the device.
func WithLogger(logger *slog.Logger) func(*Device) {
	return func(d *Device) {
		d.logger = logger.With(slog.String("device", d.id))
	}
}

// WithReadTimeout sets how long a single block read may take before the
// device is considered stalled.
func WithReadTimeout(timeout time.Duration) func(*Device) {
	return func(d *Device) {
		d.readTimeout = timeout
	}
}

// WithMaxRestarts sets the lifetime restart budget.
func WithMaxRestarts(n int) func(*Device) {
	return func(d *Device) {
		d.maxRestarts = n
	}
}

// WithMonitor sets a callback receiving restart, failure and resync events.
// The callback runs on the device goroutine and must not block.
func WithMonitor(fn func(Event)) func(*Device) {
	return func(d *Device) {
		d.monitor = fn
	}
}

// withClockNow overrides the wall-clock source used for timestamp
// derivation. Test hook.
func withClockNow(now func() time.Time) func(*Device) {
	return func(d *Device) {
		d.now = now
	}
}

// Device supervises one receiver: it owns the sample source and the device
// clock, stamps blocks with derived timestamps and delivers them in order.
// A stalled or failed source is torn down and reacquired up to the restart
// budget; device identity persists across restarts while the clock starts
// a fresh epoch. A failed device never takes the rest of the system down.
type Device struct {
	id     string
	source Source
	clock  *Clock

	readTimeout time.Duration
	maxRestarts int
	restarts    int
	state       atomic.Int32

	now     func() time.Time
	logger  *slog.Logger
	monitor func(Event)
}

// NewDevice creates a supervisor for the given source. The device starts
// with a discard logger.
func NewDevice(id string, sampleRate int, source Source, options ...func(*Device)) *Device {
	d := Device{
		id:          id,
		source:      source,
		clock:       NewClock(id, sampleRate),
		readTimeout: DefaultReadTimeout,
		maxRestarts: DefaultMaxRestarts,
		now:         time.Now,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// ID returns the device identifier.
func (d *Device) ID() string { return d.id }

// State returns the current supervisor state.
func (d *Device) State() State { return State(d.state.Load()) }

// Restarts returns the number of restarts performed so far.
func (d *Device) Restarts() int { return d.restarts }

// Run acquires the source and delivers timestamped blocks until the
// context is cancelled or the device fails permanently. The in-flight
// block is always delivered before Run returns on cancellation.
func (d *Device) Run(ctx context.Context, blocks chan<- Block) error {
	d.state.Store(int32(Starting))

	if err := d.source.Open(ctx); err != nil {
		if err = d.restart(ctx, err); err != nil {
			return err
		}
	}
	d.state.Store(int32(Running))
	d.logger.Info("device running")

	defer func() {
		if err := d.source.Close(); err != nil {
			d.logger.Warn(fmt.Sprintf("closing source: %s", err.Error()))
		}
	}()

	var seq uint64
	for {
		if ctx.Err() != nil {
			d.state.Store(int32(Stopped))
			return nil
		}

		readCtx, cancel := context.WithTimeout(ctx, d.readTimeout)
		block, err := d.source.ReadBlock(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				d.state.Store(int32(Stopped))
				return nil
			}
			if err = d.restart(ctx, err); err != nil {
				return err
			}
			continue
		}

		ts, resync := d.clock.Advance(len(block.Samples), d.now())
		if resync != nil {
			d.logger.Warn("clock drift degraded, resynced",
				slog.Duration("drift", resync.Drift))
			d.emit(Event{Device: d.id, Kind: EventResync, Drift: resync.Drift})
		}

		block.Device = d.id
		block.Index = seq
		seq++

		// The consumer drains the channel until Run returns, so the
		// send must not race cancellation: a block that was read is
		// always delivered.
		blocks <- Block{SampleBlock: block, Timestamp: ts}
	}
}

// restart tears the source down and reacquires it, consuming one unit of
// the restart budget. Only one attempt runs at a time since restart is
// called from the single Run loop.
func (d *Device) restart(ctx context.Context, cause error) error {
	if cErr := d.source.Close(); cErr != nil {
		d.logger.Warn(fmt.Sprintf("closing source for restart: %s", cErr.Error()))
	}

	if ctx.Err() != nil {
		d.state.Store(int32(Stopped))
		return nil
	}

	if d.restarts >= d.maxRestarts {
		d.state.Store(int32(Failed))
		d.logger.Error("restart budget exhausted, device failed permanently",
			slog.Int("restarts", d.restarts))
		d.emit(Event{Device: d.id, Kind: EventFailed, Restarts: d.restarts, Err: cause})
		return fmt.Errorf("%w: %s: %w", ErrDeviceFailed, d.id, cause)
	}

	d.restarts++
	d.state.Store(int32(Restarting))
	d.logger.Warn("device unresponsive, restarting",
		slog.Int("attempt", d.restarts),
		slog.String("cause", cause.Error()))
	d.emit(Event{Device: d.id, Kind: EventRestart, Restarts: d.restarts, Err: cause})

	if err := d.source.Open(ctx); err != nil {
		return d.restart(ctx, err)
	}

	// New acquisition epoch: timestamps anchor on the next block.
	d.clock.Reset()
	d.state.Store(int32(Running))
	return nil
}

func (d *Device) emit(e Event) {
	if d.monitor != nil {
		d.monitor(e)
	}
}
