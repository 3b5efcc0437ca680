package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"clipper/internal/logging"
	"clipper/internal/notifications"
)

// RecordedEvent is one event captured by Recorder.
type RecordedEvent struct {
	Event   notifications.Event
	Payload notifications.Payload
}

// Recorder is a notifications.Notifier that keeps every published event.
type Recorder struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func (r *Recorder) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	r.events = append(r.events, RecordedEvent{Event: event, Payload: payload})
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// OfType filters Events by event type.
func (r *Recorder) OfType(event notifications.Event) []RecordedEvent {
	var out []RecordedEvent
	for _, e := range r.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// NewSink returns a sink delivering into rec. Call Drain before asserting on
// rec so queued events have been delivered.
func NewSink(t testing.TB, rec *Recorder) *notifications.Sink {
	t.Helper()
	sink := notifications.NewSink(rec, logging.NewNop(), notifications.SinkOptions{QueueSize: 64, Timeout: time.Second})
	t.Cleanup(func() { Drain(t, sink) })
	return sink
}

// Drain closes sink and waits for queued deliveries.
func Drain(t testing.TB, sink *notifications.Sink) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("drain sink: %v", err)
	}
}
