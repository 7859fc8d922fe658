package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
)

const defaultQueueSize = 256

// Deliverer handles one event off the queue.
type Deliverer interface {
	Deliver(ctx context.Context, event events.Event) error
}

// NotificationWorker moves dispatched events onto a bounded queue so request
// handlers never wait on delivery.
type NotificationWorker struct {
	dispatcher events.Dispatcher
	deliverer  Deliverer
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan events.Event
	wg     sync.WaitGroup
}

// NewNotificationWorker builds a worker. queueSize <= 0 uses the default.
func NewNotificationWorker(dispatcher events.Dispatcher, deliverer Deliverer, logger *zap.Logger, queueSize int) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		dispatcher: dispatcher,
		deliverer:  deliverer,
		logger:     logger,
		queue:      make(chan events.Event, queueSize),
	}
}

// Start subscribes to every event type and begins draining the queue.
// Deliveries run under ctx rather than the publishing request's context.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.dispatcher.SubscribeAll(w.enqueue)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for event := range w.queue {
			if err := w.deliverer.Deliver(ctx, event); err != nil {
				w.logger.Warn("notification delivery failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
			}
		}
	}()
	w.logger.Info("notification worker started", zap.Int("queue_size", cap(w.queue)))
}

// Stop refuses new events and waits for queued ones to be delivered.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("notification worker stopped")
}

// enqueue never blocks; a full queue drops the event.
func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn("notification worker stopped; dropping event", zap.String("event_id", event.ID))
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
	return nil
}
