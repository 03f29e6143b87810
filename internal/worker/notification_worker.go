package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/config"
	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/service"
)

// Deliverer pushes one stored notification to its channel.
type Deliverer interface {
	Deliver(ctx context.Context, id string) (*domain.Notification, error)
}

// NotificationWorker delivers queued notifications on a fixed pool of
// goroutines. Ids that do not fit the queue stay pending in the store.
type NotificationWorker struct {
	deliverer Deliverer
	queue     chan string
	workers   int
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationWorker builds a pool; it does nothing until Start.
func NewNotificationWorker(deliverer Deliverer, workers, queueSize int, logger *zap.Logger) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		deliverer: deliverer,
		queue:     make(chan string, queueSize),
		workers:   workers,
		logger:    logger,
	}
}

// Enqueue never blocks; it reports false when the queue is full.
func (w *NotificationWorker) Enqueue(id string) bool {
	select {
	case w.queue <- id:
		return true
	default:
		return false
	}
}

// Start launches the pool. Calling it twice is a no-op.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	w.logger.Info("notification worker started", zap.Int("workers", w.workers), zap.Int("queue_size", cap(w.queue)))
}

// Stop cancels the pool and waits for in-flight deliveries.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-w.queue:
			notification, err := w.deliverer.Deliver(ctx, id)
			if err != nil {
				w.logger.Error("notification delivery errored", zap.String("notification_id", id), zap.Error(err))
				continue
			}
			w.logger.Debug("notification processed",
				zap.String("notification_id", id),
				zap.String("status", string(notification.Status)))
		}
	}
}

// StartNotificationWorker registers notification handlers and starts the
// delivery pool that serves them.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, cfg config.NotificationConfig, logger *zap.Logger) *NotificationWorker {
	if notificationService == nil {
		return nil
	}
	pool := NewNotificationWorker(notificationService, cfg.Workers, cfg.QueueSize, logger)
	notificationService.SetQueue(pool)
	notificationService.RegisterHandlers()
	pool.Start(ctx)
	return pool
}
