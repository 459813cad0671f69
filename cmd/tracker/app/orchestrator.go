package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/anhofmann/radio-tracking/internal/consume"
	"github.com/anhofmann/radio-tracking/internal/detect"
	"github.com/anhofmann/radio-tracking/internal/dsp"
	"github.com/anhofmann/radio-tracking/internal/sdr"
	"github.com/anhofmann/radio-tracking/internal/tracking"
)

const (
	blockQueueSize  = 4
	signalQueueSize = 64
)

// chain is one device's processing pipeline: supervisor, spectrogram
// analyzer and segmenter. Chains share nothing; finished signals are the
// only traffic out.
type chain struct {
	device    *sdr.Device
	analyzer  *dsp.Analyzer
	segmenter *detect.Segmenter
}

// Orchestrator runs all device chains concurrently, merges their signal
// streams in time order and drives the matcher. It is the single
// consumer of the matcher's working set.
type Orchestrator struct {
	chains     []*chain
	matcher    *tracking.Matcher
	buffer     *tracking.ReorderBuffer
	dispatcher *consume.Dispatcher
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator publishing through the given
// dispatcher.
func NewOrchestrator(matcher *tracking.Matcher, buffer *tracking.ReorderBuffer, dispatcher *consume.Dispatcher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		matcher:    matcher,
		buffer:     buffer,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// AddChain registers a device chain. Must be called before Run.
func (o *Orchestrator) AddChain(device *sdr.Device, analyzer *dsp.Analyzer, segmenter *detect.Segmenter) {
	o.chains = append(o.chains, &chain{device: device, analyzer: analyzer, segmenter: segmenter})
}

// Run starts all chains and blocks until the context is cancelled or
// every device has failed permanently. On shutdown, in-flight blocks are
// drained and open groups are flushed as final emissions.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.chains) == 0 {
		return fmt.Errorf("no devices to run")
	}

	signals := make(chan tracking.Signal, signalQueueSize)

	matcherDone := make(chan struct{})
	go func() {
		defer close(matcherDone)
		o.consumeSignals(signals)
	}()

	var failed atomic.Int32
	var wg sync.WaitGroup
	for _, c := range o.chains {
		wg.Add(1)
		go func(c *chain) {
			defer wg.Done()
			o.runChain(ctx, c, signals)

			if c.device.State() == sdr.Failed {
				failed.Add(1)
			}
		}(c)
	}

	wg.Wait()
	close(signals)
	<-matcherDone

	if n := int(failed.Load()); n == len(o.chains) {
		return fmt.Errorf("all %d devices failed permanently", n)
	}
	return nil
}

// runChain pumps one device: supervised block acquisition feeding the
// analyzer and segmenter. The blocks channel is closed by the supervisor
// goroutine, so the chain finishes the in-flight blocks before exiting.
func (o *Orchestrator) runChain(ctx context.Context, c *chain, signals chan<- tracking.Signal) {
	blocks := make(chan sdr.Block, blockQueueSize)

	runErr := make(chan error, 1)
	go func() {
		runErr <- c.device.Run(ctx, blocks)
		close(blocks)
	}()

	for block := range blocks {
		frame, err := c.analyzer.Analyze(block)
		if err != nil {
			o.logger.Error(err.Error(), slog.String("device", c.device.ID()))
			continue
		}

		for _, sig := range c.segmenter.Feed(frame) {
			o.dispatcher.Signal(sig)
			signals <- sig
		}
	}

	if err := <-runErr; err != nil {
		if errors.Is(err, sdr.ErrDeviceFailed) {
			o.logger.Warn("device excluded from further processing",
				slog.String("device", c.device.ID()),
				slog.String("error", err.Error()))
			return
		}
		o.logger.Error(err.Error(), slog.String("device", c.device.ID()))
	}
}

// consumeSignals is the single consumer of the merged signal stream. It
// restores time order across devices, feeds the matcher and publishes
// groups as their matching window closes.
func (o *Orchestrator) consumeSignals(signals <-chan tracking.Signal) {
	for sig := range signals {
		o.buffer.Insert(sig)
		for _, ready := range o.buffer.Release() {
			o.match(ready)
		}
	}

	// Shutdown: drain held-back signals, then flush open groups.
	for _, sig := range o.buffer.DrainAll() {
		o.match(sig)
	}
	for _, group := range o.matcher.Flush() {
		o.dispatcher.Match(group)
	}
}

func (o *Orchestrator) match(sig tracking.Signal) {
	for _, group := range o.matcher.Add(sig) {
		o.dispatcher.Match(group)
	}
}
