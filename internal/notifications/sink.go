package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"clipper/internal/logging"
)

const (
	defaultQueueSize = 64
	defaultTimeout   = 15 * time.Second
)

// SinkOptions tunes the delivery queue.
type SinkOptions struct {
	QueueSize int
	Timeout   time.Duration
}

type envelope struct {
	event   Event
	payload Payload
}

// Sink queues events for a single background delivery goroutine. Send never
// blocks: a full queue drops the event. Delivery errors are logged and
// discarded.
type Sink struct {
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan envelope

	base    context.Context
	abandon context.CancelFunc
	done    chan struct{}

	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewSink starts the delivery goroutine. A nil notifier behaves like Noop.
func NewSink(notifier Notifier, logger *slog.Logger, opts SinkOptions) *Sink {
	if notifier == nil {
		notifier = Noop{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Sink{
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "notifications"),
		timeout:  opts.Timeout,
		queue:    make(chan envelope, opts.QueueSize),
		base:     base,
		abandon:  cancel,
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Send enqueues event and returns immediately. It is safe on a nil Sink and
// after Close, where it does nothing.
func (s *Sink) Send(event Event, payload Payload) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- envelope{event: event, payload: payload.clone()}:
	default:
		dropped := s.dropped.Add(1)
		logging.WarnWithContext(s.logger, "notification queue full; event dropped", "notification_dropped",
			logging.String("event", string(event)),
			logging.Int("queue_size", cap(s.queue)),
			logging.Int64("dropped_total", dropped),
			logging.String(logging.FieldImpact, "this event and any attached file will not reach the notification channel"),
			logging.String(logging.FieldErrorHint, "check notification channel latency; the artifact is still on disk"),
		)
	}
}

// Close stops accepting events and delivers what is queued until ctx ends;
// anything still pending then is abandoned.
func (s *Sink) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.abandon()
		pending := len(s.queue)
		s.logger.Warn("notification drain timed out; pending events abandoned",
			logging.Int("pending", pending),
			logging.EventType("notification_drain_timeout"),
			logging.String(logging.FieldImpact, "some notifications were not delivered"),
		)
		return ctx.Err()
	}
}

// Stats reports delivered, failed and dropped counts.
func (s *Sink) Stats() (delivered, failed, dropped int64) {
	if s == nil {
		return 0, 0, 0
	}
	return s.delivered.Load(), s.failed.Load(), s.dropped.Load()
}

func (s *Sink) run() {
	defer close(s.done)
	for env := range s.queue {
		if s.base.Err() != nil {
			continue
		}
		s.deliver(env)
	}
}

func (s *Sink) deliver(env envelope) {
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	started := time.Now()
	err := s.publish(ctx, env)
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("notification delivery failed",
			logging.EventType(string(env.event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notification channel settings"),
			logging.String(logging.FieldImpact, "notification not delivered; pipeline unaffected"),
		)
		return
	}
	s.delivered.Add(1)
	s.logger.Debug("notification delivered",
		logging.EventType(string(env.event)),
		logging.Duration("elapsed", time.Since(started)),
	)
}

func (s *Sink) publish(ctx context.Context, env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return s.notifier.Publish(ctx, env.event, env.payload)
}

type panicError struct{ value any }

func (e *panicError) Error() string { return fmt.Sprintf("notifier panicked: %v", e.value) }
