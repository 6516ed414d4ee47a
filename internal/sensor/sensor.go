package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/metrics"
)

// Event is a single observation emitted by a sensor.
type Event struct {
	Source     string    `json:"source"`
	Label      string    `json:"label"`
	Detail     string    `json:"detail,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	At         time.Time `json:"at"`
}

// Handler consumes sensor events. Handlers must be fast; slow work
// belongs in the consumer's own goroutine.
type Handler func(Event)

// Source is a pollable sensor. Poll may block (a microphone listener
// blocks until it hears something) and must honor ctx cancellation.
type Source interface {
	Name() string
	Interval() time.Duration
	Poll(ctx context.Context) ([]Event, error)
}

const maxBackoff = 30 * time.Second

// Runner drives a single sensor in its own goroutine. A failing or
// panicking sensor never takes down its siblings: errors are logged
// and retried with exponential backoff, capped at maxBackoff.
type Runner struct {
	src      Source
	handler  Handler
	logger   zerolog.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewRunner creates a runner for the given source.
func NewRunner(src Source, handler Handler, logger zerolog.Logger) *Runner {
	return &Runner{
		src:      src,
		handler:  handler,
		logger:   logger.With().Str("component", "sensor").Str("worker", src.Name()).Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the polling loop.
func (r *Runner) Start() {
	r.logger.Info().Dur("interval", r.src.Interval()).Msg("Starting sensor worker")
	go r.loop()
}

// Stop halts the loop and waits for the in-flight poll to return.
func (r *Runner) Stop() {
	close(r.stopChan)
	<-r.doneChan
}

func (r *Runner) loop() {
	defer close(r.doneChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-r.stopChan
		cancel()
	}()

	var backoff time.Duration
	for {
		wait := r.src.Interval()
		if backoff > 0 {
			wait = backoff
		}
		select {
		case <-r.stopChan:
			return
		case <-time.After(wait):
		}

		events, err := r.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.WorkerErrorsTotal.WithLabelValues(r.src.Name()).Inc()
			backoff = nextBackoff(backoff, r.src.Interval())
			r.logger.Error().Err(err).Dur("backoff", backoff).Msg("Sensor poll failed")
			continue
		}
		backoff = 0

		for _, ev := range events {
			if ev.At.IsZero() {
				ev.At = time.Now()
			}
			metrics.SensorEventsTotal.WithLabelValues(ev.Source, ev.Label).Inc()
			r.logger.Debug().
				Str("source", ev.Source).
				Str("label", ev.Label).
				Str("detail", ev.Detail).
				Msg("Sensor event")
			r.handler(ev)
		}
	}
}

// poll wraps Source.Poll with panic recovery so a misbehaving sensor
// library cannot crash the daemon.
func (r *Runner) poll(ctx context.Context) (events []Event, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.WorkerRestartsTotal.WithLabelValues(r.src.Name()).Inc()
			err = fmt.Errorf("sensor panic: %v", rec)
		}
	}()
	return r.src.Poll(ctx)
}

func nextBackoff(cur, base time.Duration) time.Duration {
	if cur <= 0 {
		if base > 0 {
			cur = base
		} else {
			cur = time.Second
		}
	} else {
		cur *= 2
	}
	if cur > maxBackoff {
		cur = maxBackoff
	}
	return cur
}
