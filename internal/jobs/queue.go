// Package jobs moves notification delivery onto an asynq queue backed by Redis.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"momentum-quiz-service/internal/domain"
)

const (
	TypeDeliverNotification = "notification:deliver"

	queueCritical = "critical"
	queueDefault  = "default"
)

// Deliverer sends a notification synchronously.
type Deliverer interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

// Enqueuer is the part of asynq.Client the queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue implements app.Dispatcher by enqueueing a delivery task per notification.
type Queue struct {
	client  Enqueuer
	timeout time.Duration
	log     *slog.Logger
}

func NewQueue(client Enqueuer, timeout time.Duration, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Queue{client: client, timeout: timeout, log: logger}
}

// NewTask builds the asynq task and options for a notification.
// Staff alerts go to the critical queue so a busy applicant queue never delays them.
func NewTask(n domain.Notification, timeout time.Duration) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal notification: %w", err)
	}
	queue, retries := queueDefault, 3
	if n.Kind == domain.NotifyStaff {
		queue, retries = queueCritical, 5
	}
	opts := []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(retries),
		asynq.Timeout(timeout),
	}
	return asynq.NewTask(TypeDeliverNotification, payload), opts, nil
}

// Dispatch enqueues n. Enqueue failures are logged, never returned.
func (q *Queue) Dispatch(n domain.Notification) {
	task, opts, err := NewTask(n, q.timeout)
	if err != nil {
		q.log.Warn("notification not queued", "submission", n.SubmissionID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		q.log.Warn("notification not queued", "submission", n.SubmissionID, "kind", n.Kind, "error", err)
		return
	}
	q.log.Info("notification queued", "task", info.ID, "queue", info.Queue, "kind", n.Kind, "submission", n.SubmissionID)
}

// HandleDeliver is the worker side of TypeDeliverNotification.
func HandleDeliver(d Deliverer, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, task *asynq.Task) error {
		var n domain.Notification
		if err := json.Unmarshal(task.Payload(), &n); err != nil {
			// A payload that cannot be decoded will never succeed.
			return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
		}
		logger.Info("processing notification", "kind", n.Kind, "submission", n.SubmissionID)
		if err := d.Deliver(ctx, n); err != nil {
			return fmt.Errorf("deliver %s notification for %s: %w", n.Kind, n.SubmissionID, err)
		}
		return nil
	}
}
