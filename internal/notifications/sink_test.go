package notifications_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipper/internal/logging"
	"clipper/internal/notifications"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	delay  time.Duration
	err    error
	gate   chan struct{}
}

func (r *recordingNotifier) Publish(ctx context.Context, event notifications.Event, _ notifications.Payload) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestSinkSendDoesNotBlockOnSlowNotifier(t *testing.T) {
	slow := &recordingNotifier{delay: 200 * time.Millisecond}
	sink := notifications.NewSink(slow, logging.NewNop(), notifications.SinkOptions{QueueSize: 16, Timeout: time.Second})

	start := time.Now()
	for i := 0; i < 10; i++ {
		sink.Send(notifications.EventCutJobCompleted, notifications.Payload{notifications.KeyClipID: i})
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Send blocked for %s", elapsed)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if slow.count() != 10 {
		t.Fatalf("expected 10 deliveries after drain, got %d", slow.count())
	}
}

func TestSinkDropsWhenQueueFull(t *testing.T) {
	gate := make(chan struct{})
	blocked := &recordingNotifier{gate: gate}
	sink := notifications.NewSink(blocked, logging.NewNop(), notifications.SinkOptions{QueueSize: 2, Timeout: time.Second})

	for i := 0; i < 10; i++ {
		sink.Send(notifications.EventStageStarted, nil)
	}
	close(gate)
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	delivered, _, dropped := sink.Stats()
	if dropped == 0 {
		t.Fatal("expected dropped events with a full queue")
	}
	if delivered+dropped != 10 {
		t.Fatalf("expected delivered+dropped = 10, got %d+%d", delivered, dropped)
	}
}

func TestSinkLogsDroppedEventsAsWarnings(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sink.log")
	logger, err := logging.New(logging.Options{Level: "warn", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	gate := make(chan struct{})
	sink := notifications.NewSink(&recordingNotifier{gate: gate}, logger, notifications.SinkOptions{QueueSize: 1, Timeout: time.Second})
	for i := 0; i < 5; i++ {
		sink.Send(notifications.EventCutJobCompleted, notifications.Payload{notifications.KeyClipID: i})
	}
	close(gate)
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(content)
	for _, fragment := range []string{`"level":"warn"`, `"event_type":"notification_dropped"`, `"event":"cut_job_completed"`, `"impact":`} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %s in %q", fragment, text)
		}
	}
}

func TestSinkSwallowsDeliveryErrors(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("network down")}
	sink := notifications.NewSink(failing, logging.NewNop(), notifications.SinkOptions{})
	sink.Send(notifications.EventError, notifications.Payload{notifications.KeyError: "boom"})
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, failed, _ := sink.Stats()
	if failed != 1 {
		t.Fatalf("expected one failed delivery, got %d", failed)
	}
}

func TestSinkCloseAbandonsAfterDeadline(t *testing.T) {
	hang := &recordingNotifier{gate: make(chan struct{})}
	sink := notifications.NewSink(hang, logging.NewNop(), notifications.SinkOptions{Timeout: time.Hour})
	for i := 0; i < 3; i++ {
		sink.Send(notifications.EventStageCompleted, nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := sink.Close(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Close waited past its deadline")
	}
	sink.Send(notifications.EventStageCompleted, nil)
}

type panickyNotifier struct{ calls atomic.Int32 }

func (p *panickyNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	p.calls.Add(1)
	panic("transport bug")
}

func TestSinkSurvivesNotifierPanic(t *testing.T) {
	p := &panickyNotifier{}
	sink := notifications.NewSink(p, logging.NewNop(), notifications.SinkOptions{})
	sink.Send(notifications.EventTest, nil)
	sink.Send(notifications.EventTest, nil)
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.calls.Load() != 2 {
		t.Fatalf("expected both events attempted, got %d", p.calls.Load())
	}
}

func TestNilSinkIsSafe(t *testing.T) {
	var sink *notifications.Sink
	sink.Send(notifications.EventTest, nil)
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close on nil sink: %v", err)
	}
}
