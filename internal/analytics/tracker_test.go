package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/career-journal-signup/internal/observability/metrics"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *memorySink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Name)
	}
	return out
}

func TestTrackerDeliversInOrder(t *testing.T) {
	sink := &memorySink{}
	tracker := NewTracker(8, nil, nil, sink)
	done := make(chan struct{})
	go func() {
		tracker.Run(context.Background())
		close(done)
	}()

	tracker.Track(context.Background(), "session_started", map[string]any{"utm_source": "direct"})
	tracker.Track(context.Background(), "account_created", map[string]any{"method": "email"})
	tracker.Close()
	<-done

	assert.Equal(t, []string{"session_started", "account_created"}, sink.names())
}

func TestTrackerDropsWhenFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSignupMetrics(reg)
	sink := &memorySink{}
	tracker := NewTracker(1, m, nil, sink)

	// Nothing drains until Run starts, so the second event has no room.
	tracker.Track(context.Background(), "profile_skipped", nil)
	tracker.Track(context.Background(), "profile_skipped", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsCounter("profile_skipped", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsCounter("profile_skipped", "dropped")))

	tracker.Close()
	tracker.Run(context.Background())
	assert.Equal(t, []string{"profile_skipped"}, sink.names())
}

func TestTrackerTrackAfterCloseDrops(t *testing.T) {
	sink := &memorySink{}
	tracker := NewTracker(4, nil, nil, sink)
	tracker.Close()
	tracker.Track(context.Background(), "start_journaling_clicked", nil)
	tracker.Run(context.Background())

	assert.Empty(t, sink.names())
}

func TestTrackerDrainsOnCancel(t *testing.T) {
	sink := &memorySink{}
	tracker := NewTracker(4, nil, nil, sink)
	tracker.Track(context.Background(), "calendar_reminder_clicked", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracker.Run(ctx)

	assert.Equal(t, []string{"calendar_reminder_clicked"}, sink.names())
}

func TestTrackerSinkErrorsDoNotStopDelivery(t *testing.T) {
	good := &memorySink{}
	bad := SinkFunc(func(context.Context, Event) error { return errors.New("boom") })
	tracker := NewTracker(4, nil, nil, bad, good)

	tracker.Track(context.Background(), "signup_failed", nil)
	tracker.Close()
	tracker.Run(context.Background())

	assert.Equal(t, []string{"signup_failed"}, good.names())
}

func TestTrackerStampsEvents(t *testing.T) {
	sink := &memorySink{}
	tracker := NewTracker(1, nil, nil, sink)
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	tracker.Track(context.Background(), "session_started", nil)
	tracker.Close()
	tracker.Run(context.Background())

	require.Len(t, sink.events, 1)
	assert.Equal(t, fixed, sink.events[0].OccurredAt)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(nil)
	assert.NoError(t, sink.Write(context.Background(), Event{Name: "x", Props: map[string]any{"a": 1}}))
}
