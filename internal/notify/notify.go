// Package notify delivers lifecycle events to pluggable sinks. Delivery is
// best-effort and never blocks or fails the core workflow.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/logging"
)

// Sink receives one lifecycle event.
type Sink interface {
	// Notify delivers an event. The context carries the per-sink deadline.
	Notify(ctx context.Context, evt domain.Event) error

	// Name identifies the sink in logs.
	Name() string
}

// Dispatcher fans events out to registered sinks, each in its own
// goroutine with a bounded timeout and panic recovery.
type Dispatcher struct {
	mu      sync.RWMutex
	sinks   []Sink
	log     *logging.Logger
	timeout time.Duration
}

// NewDispatcher creates a dispatcher with the given per-sink timeout.
func NewDispatcher(log *logging.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		log:     log.Sub("notify"),
		timeout: timeout,
	}
}

// Register adds a sink.
func (d *Dispatcher) Register(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
	d.log.Info().Str("sink", s.Name()).Msg("sink registered")
}

// Startable is a sink that maintains a long-lived connection.
type Startable interface {
	Sink

	// Start runs the sink's connection loop. It may block for the life of
	// the connection, returning only on error or context cancellation.
	Start(ctx context.Context) error
}

// RegisterStartable registers the sink immediately and launches its Start
// loop in a background goroutine. Start methods may block (e.g. IRC's
// Connect), so they must not run on the caller's goroutine; until the
// connection is up the sink's Notify degrades and the dispatcher logs the
// failed delivery.
func (d *Dispatcher) RegisterStartable(ctx context.Context, s Startable) {
	d.Register(s)
	d.log.Info().Str("sink", s.Name()).Msg("starting sink")
	go func() {
		if err := s.Start(ctx); err != nil {
			d.log.Error().Err(err).Str("sink", s.Name()).Msg("sink exited with error")
		}
	}()
}

// Count returns the number of registered sinks.
func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sinks)
}

// Publish delivers an event to every sink, fire-and-forget.
func (d *Dispatcher) Publish(evt domain.Event) {
	d.mu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, s := range sinks {
		go d.deliver(s, evt)
	}
}

func (d *Dispatcher) deliver(s Sink, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("sink", s.Name()).Str("event", evt.Type).
				Str("panic", fmt.Sprint(r)).Msg("sink panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := s.Notify(ctx, evt); err != nil {
		d.log.Warn().Str("sink", s.Name()).Str("event", evt.Type).Err(err).
			Msg("delivery failed")
	}
}

// LogSink writes events to the log. It is always registered.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink creates a sink that logs events.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log.Sub("events")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(_ context.Context, evt domain.Event) error {
	s.log.Info().Str("userId", evt.UserID).Str("type", evt.Type).
		Time("at", evt.Timestamp).Msg("lifecycle event")
	return nil
}
