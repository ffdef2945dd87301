package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/table-reservation/internal/events"
)

// ErrForwardQueueFull is returned by Enqueue when the backlog is at capacity.
var ErrForwardQueueFull = errors.New("event forward queue full")

const defaultForwardTimeout = 5 * time.Second

// EventForwarder hands events to a slow handler, such as the broker
// publisher, from a single background goroutine. Enqueue never waits on the
// handler.
type EventForwarder struct {
	handler events.EventHandler
	queue   chan events.Event
	timeout time.Duration
	logger  *zap.Logger

	startOnce sync.Once
	done      chan struct{}
}

// NewEventForwarder creates a forwarder holding up to size pending events.
// Each delivery gets its own timeout; zero selects a default.
func NewEventForwarder(handler events.EventHandler, size int, timeout time.Duration, logger *zap.Logger) *EventForwarder {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = defaultForwardTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventForwarder{
		handler: handler,
		queue:   make(chan events.Event, size),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Enqueue is an EventHandler that queues the event and returns immediately.
func (f *EventForwarder) Enqueue(_ context.Context, event events.Event) error {
	select {
	case f.queue <- event:
		return nil
	default:
		return ErrForwardQueueFull
	}
}

// Start launches the delivery loop. It stops when ctx is cancelled; events
// still queued at that point are dropped and counted in the log.
func (f *EventForwarder) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		go f.run(ctx)
	})
}

// Done is closed once the delivery loop has exited.
func (f *EventForwarder) Done() <-chan struct{} {
	return f.done
}

func (f *EventForwarder) run(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			if n := len(f.queue); n > 0 {
				f.logger.Warn("dropping queued events", zap.Int("count", n))
			}
			return
		case event := <-f.queue:
			f.deliver(ctx, event)
		}
	}
}

func (f *EventForwarder) deliver(ctx context.Context, event events.Event) {
	deliverCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.handler(deliverCtx, event); err != nil {
		f.logger.Warn("forward event failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
