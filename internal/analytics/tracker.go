// Package analytics records wizard events without ever blocking a
// transition.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/career-journal-signup/internal/observability/metrics"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// Event is one tracked occurrence.
type Event struct {
	Name       string         `json:"event"`
	Props      map[string]any `json:"props,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Sink receives events from the tracker worker.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Write(ctx context.Context, e Event) error { return f(ctx, e) }

// Tracker buffers events and fans them out to sinks on a worker goroutine.
// Track never blocks: a full buffer drops the event.
type Tracker struct {
	events  chan Event
	sinks   []Sink
	metrics *metrics.SignupMetrics
	logger  *logging.Logger
	now     func() time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewTracker creates a tracker with the given buffer size. Call Run to start
// delivery.
func NewTracker(buffer int, m *metrics.SignupMetrics, logger *logging.Logger, sinks ...Sink) *Tracker {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{
		events:  make(chan Event, buffer),
		sinks:   sinks,
		metrics: m,
		logger:  logger.Component("analytics"),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Track enqueues an event.
func (t *Tracker) Track(ctx context.Context, name string, props map[string]any) {
	e := Event{Name: name, Props: props, OccurredAt: t.now().UTC()}
	select {
	case <-t.done:
		t.metrics.ObserveAnalytics(name, "dropped")
		return
	default:
	}
	select {
	case t.events <- e:
		t.metrics.ObserveAnalytics(name, "accepted")
	default:
		t.metrics.ObserveAnalytics(name, "dropped")
		t.logger.Warn("analytics buffer full, event dropped", "event", name)
	}
}

// Run delivers events until ctx is done or Close is called, then drains
// what is left in the buffer.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case e := <-t.events:
			t.deliver(ctx, e)
		case <-ctx.Done():
			t.drain(context.WithoutCancel(ctx))
			return
		case <-t.done:
			t.drain(ctx)
			return
		}
	}
}

// Close stops accepting events. Run drains the buffer before returning.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *Tracker) drain(ctx context.Context) {
	for {
		select {
		case e := <-t.events:
			t.deliver(ctx, e)
		default:
			return
		}
	}
}

func (t *Tracker) deliver(ctx context.Context, e Event) {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		t.logger.Error("analytics sink failed", "error", err, "event", e.Name)
	}
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger.Component("analytics")}
}

func (s *LogSink) Write(_ context.Context, e Event) error {
	args := make([]any, 0, 2+2*len(e.Props))
	args = append(args, "event", e.Name)
	for k, v := range e.Props {
		args = append(args, k, v)
	}
	s.logger.Info("analytics event", args...)
	return nil
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = SinkFunc(nil)
)
