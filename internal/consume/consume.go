// Package consume fans detections out to publish sinks. Sinks are fire
// and forget: each runs behind a bounded queue on its own goroutine, so a
// slow or unavailable sink drops output rather than stalling acquisition.
package consume

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/anhofmann/radio-tracking/internal/tracking"
)

// DefaultQueueSize is the per-sink queue depth.
const DefaultQueueSize = 256

// Sink publishes detections to one destination.
type Sink interface {
	PublishSignal(sig tracking.Signal) error
	PublishMatch(m *tracking.MatchedSignal) error
	Close() error
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithQueueSize sets the per-sink queue depth.
func WithQueueSize(size int) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.queueSize = size
	}
}

type event struct {
	sig   *tracking.Signal
	match *tracking.MatchedSignal
}

type worker struct {
	name    string
	sink    Sink
	queue   chan event
	dropped atomic.Uint64
}

// Dispatcher multiplexes detections onto registered sinks.
type Dispatcher struct {
	workers   []*worker
	queueSize int
	logger    *slog.Logger

	wg      sync.WaitGroup
	started bool
}

// NewDispatcher creates a dispatcher with a discard logger.
func NewDispatcher(options ...func(*Dispatcher)) *Dispatcher {
	d := Dispatcher{
		queueSize: DefaultQueueSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Add registers a sink. Must be called before Start.
func (d *Dispatcher) Add(name string, sink Sink) {
	d.workers = append(d.workers, &worker{
		name:  name,
		sink:  sink,
		queue: make(chan event, d.queueSize),
	})
}

// Start launches one goroutine per sink.
func (d *Dispatcher) Start() {
	d.started = true
	for _, w := range d.workers {
		d.wg.Add(1)
		go d.run(w)
	}
}

// Signal publishes a detection to all sinks without blocking; a full
// queue drops the event for that sink.
func (d *Dispatcher) Signal(sig tracking.Signal) {
	d.publish(event{sig: &sig})
}

// Match publishes a matched group to all sinks without blocking.
func (d *Dispatcher) Match(m *tracking.MatchedSignal) {
	d.publish(event{match: m})
}

func (d *Dispatcher) publish(e event) {
	for _, w := range d.workers {
		select {
		case w.queue <- e:
		default:
			if n := w.dropped.Add(1); n == 1 || n%1000 == 0 {
				d.logger.Warn("sink queue full, dropping",
					slog.String("sink", w.name),
					slog.Uint64("dropped", n))
			}
		}
	}
}

// Close drains the queues, stops the workers and closes every sink.
func (d *Dispatcher) Close() error {
	var errs []error

	if d.started {
		for _, w := range d.workers {
			close(w.queue)
		}
		d.wg.Wait()
	}

	for _, w := range d.workers {
		if err := w.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing sink %s: %w", w.name, err))
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()

	for e := range w.queue {
		var err error
		switch {
		case e.sig != nil:
			err = w.sink.PublishSignal(*e.sig)
		case e.match != nil:
			err = w.sink.PublishMatch(e.match)
		}
		if err != nil {
			d.logger.Warn(fmt.Sprintf("sink publish failed: %s", err.Error()),
				slog.String("sink", w.name))
		}
	}
}
