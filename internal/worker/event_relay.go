package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"finance/internal/amqp"
	"finance/internal/notify"
	"finance/internal/services"
)

const defaultQueueSize = 64

// Publisher is the part of *amqp.Client the relay uses.
type Publisher interface {
	Publish(ctx context.Context, msg *amqp.EventMessage) error
}

// EventRelay forwards notifications and sync reports to a broker from a
// single background goroutine, so producers never wait on the network.
// Events arriving while the queue is full are dropped.
type EventRelay struct {
	publisher Publisher
	queue     chan *amqp.EventMessage

	mu      sync.Mutex
	started bool
	closed  bool
	dropped int
	done    chan struct{}
}

func NewEventRelay(publisher Publisher, queueSize int) *EventRelay {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &EventRelay{
		publisher: publisher,
		queue:     make(chan *amqp.EventMessage, queueSize),
		done:      make(chan struct{}),
	}
}

// Start drains the queue until Stop is called. Only the first call has an
// effect, and none after Stop.
func (r *EventRelay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	go func() {
		defer close(r.done)
		for msg := range r.queue {
			if err := r.publisher.Publish(ctx, msg); err != nil {
				slog.WarnContext(ctx, "Failed to relay event", "type", msg.Type, "error", err)
			}
		}
	}()
}

// HandleNotification queues added notifications; removals are not relayed.
func (r *EventRelay) HandleNotification(e notify.Event) {
	if e.Type != notify.EventAdded {
		return
	}
	r.enqueue(amqp.NewNotificationMessage(e.Notification))
}

// HandleSyncReport queues a finished sync run.
func (r *EventRelay) HandleSyncReport(_ context.Context, report services.SyncReport) {
	r.enqueue(amqp.NewSyncReportMessage(report))
}

func (r *EventRelay) enqueue(msg *amqp.EventMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- msg:
	default:
		r.dropped++
		slog.Warn("Event relay queue full, dropping event", "type", msg.Type, "dropped", r.dropped)
	}
}

// Dropped is the number of events lost to a full queue.
func (r *EventRelay) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Stop stops accepting events and waits up to timeout for queued ones to be
// published. A relay that was never started returns at once.
func (r *EventRelay) Stop(timeout time.Duration) {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	started := r.started
	r.mu.Unlock()

	if !started {
		if n := len(r.queue); n > 0 {
			slog.Warn("Event relay stopped before it started", "pending", n)
		}
		return
	}

	select {
	case <-r.done:
	case <-time.After(timeout):
		slog.Warn("Event relay stop timed out", "pending", len(r.queue))
	}
}
