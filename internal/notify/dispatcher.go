package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Fanout доставляет уведомление всем участникам организации.
type Fanout interface {
	NotifyOrganization(ctx context.Context, organizationID, excludeUserID string, n models.Notification) error
	EmailOrganization(ctx context.Context, organizationID string, n models.Notification) error
}

// Dispatcher выполняет намерения после фиксации транзакции. Ошибки доставки
// не возвращаются: переход уже зафиксирован и не откатывается.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents []models.NotificationIntent)
}

func deliver(ctx context.Context, fanout Fanout, intent models.NotificationIntent) error {
	switch intent.Channel {
	case models.InAppChannel:
		return fanout.NotifyOrganization(ctx, intent.OrganizationID, intent.ExcludeUserID, intent.Notification)
	case models.EmailChannel:
		return fanout.EmailOrganization(ctx, intent.OrganizationID, intent.Notification)
	default:
		return fmt.Errorf("unknown notification channel %q", intent.Channel)
	}
}

func logFailure(logger *logrus.Entry, intent models.NotificationIntent, err error) {
	logger.WithFields(logrus.Fields{
		"channel":         intent.Channel,
		"type":            intent.Notification.Type,
		"organization_id": intent.OrganizationID,
		"error":           err.Error(),
	}).Warn("notification delivery failed")
}

// Inline доставляет уведомления синхронно в вызывающей горутине.
type Inline struct {
	Fanout Fanout
	Logger *logrus.Entry
}

// NewInline создаёт новый экземпляр Inline.
func NewInline(fanout Fanout, logger *logrus.Entry) *Inline {
	return &Inline{Fanout: fanout, Logger: logger}
}

// Dispatch доставляет каждое намерение, ошибки только логируются.
func (d *Inline) Dispatch(ctx context.Context, intents []models.NotificationIntent) {
	for _, intent := range intents {
		if err := deliver(ctx, d.Fanout, intent); err != nil {
			logFailure(d.Logger, intent, err)
		}
	}
}

// Queue доставляет уведомления пулом воркеров из ограниченной очереди.
// Если очередь заполнена или остановлена, уведомление отбрасывается с предупреждением.
type Queue struct {
	fanout  Fanout
	logger  *logrus.Entry
	pool    *pool.Pool
	workers int
	jobs    chan models.NotificationIntent

	mu      sync.RWMutex
	started bool
	stopped bool
	wait    sync.Once
}

// NewQueue создаёт очередь с заданным числом воркеров и размером буфера.
func NewQueue(fanout Fanout, logger *logrus.Entry, workers, size int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 64
	}
	return &Queue{
		fanout:  fanout,
		logger:  logger,
		pool:    pool.New().WithMaxGoroutines(workers),
		workers: workers,
		jobs:    make(chan models.NotificationIntent, size),
	}
}

// Start запускает воркеры. ctx передаётся в Fanout при доставке.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	for i := 0; i < q.workers; i++ {
		worker := i
		q.pool.Go(func() {
			for intent := range q.jobs {
				if err := deliver(ctx, q.fanout, intent); err != nil {
					logFailure(q.logger.WithField("worker", worker), intent, err)
				}
			}
		})
	}
}

// Dispatch ставит намерения в очередь, не блокируясь.
func (q *Queue) Dispatch(_ context.Context, intents []models.NotificationIntent) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, intent := range intents {
		if q.stopped {
			logFailure(q.logger, intent, errQueueStopped)
			continue
		}
		select {
		case q.jobs <- intent:
		default:
			logFailure(q.logger, intent, errQueueFull)
		}
	}
}

// Stop закрывает очередь и ждёт, пока воркеры доставят оставшееся.
// Повторный вызов безопасен.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.jobs)
	}
	started := q.started
	q.mu.Unlock()
	if started {
		q.wait.Do(q.pool.Wait)
	}
}

var (
	errQueueFull    = errors.New("notification queue is full")
	errQueueStopped = errors.New("notification queue is stopped")
)
