// Package notify delivers post-submission notifications: applicant confirmations by email and staff alerts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"momentum-quiz-service/internal/domain"
)

// EmailSender delivers one rendered email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg Message) error
}

// Alerter delivers a plain-text staff alert.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Notifier renders a notification and routes it to the channel for its kind.
type Notifier struct {
	renderer *Renderer
	email    EmailSender
	alerts   Alerter
}

func NewNotifier(renderer *Renderer, email EmailSender, alerts Alerter) *Notifier {
	return &Notifier{renderer: renderer, email: email, alerts: alerts}
}

// Deliver sends n. Failures come back as *domain.NotificationError.
func (n *Notifier) Deliver(ctx context.Context, note domain.Notification) error {
	switch note.Kind {
	case domain.NotifyApplicant:
		if n.email == nil {
			return nil
		}
		if note.Recipient.Email == "" {
			return &domain.NotificationError{Channel: "email", Err: errors.New("no recipient email")}
		}
		msg, err := n.renderer.Email(note)
		if err != nil {
			return &domain.NotificationError{Channel: "email", Err: err}
		}
		if err := n.email.SendEmail(ctx, msg); err != nil {
			return &domain.NotificationError{Channel: "email", Err: err}
		}
		return nil
	case domain.NotifyStaff:
		if n.alerts == nil {
			return nil
		}
		text, err := n.renderer.Alert(note)
		if err != nil {
			return &domain.NotificationError{Channel: "staff", Err: err}
		}
		if err := n.alerts.Alert(ctx, text); err != nil {
			return &domain.NotificationError{Channel: "staff", Err: err}
		}
		return nil
	default:
		return &domain.NotificationError{Channel: string(note.Kind), Err: fmt.Errorf("unknown notification kind %q", note.Kind)}
	}
}

// Deliverer is anything that can send a notification synchronously.
type Deliverer interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

// AsyncDispatcher delivers notifications on their own goroutine with a timeout.
// Outcomes are only logged; nothing is reported back to the caller.
type AsyncDispatcher struct {
	deliverer Deliverer
	timeout   time.Duration
	log       *slog.Logger
	wg        sync.WaitGroup
}

func NewAsyncDispatcher(deliverer Deliverer, timeout time.Duration, logger *slog.Logger) *AsyncDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncDispatcher{deliverer: deliverer, timeout: timeout, log: logger}
}

func (d *AsyncDispatcher) Dispatch(n domain.Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := d.deliverer.Deliver(ctx, n); err != nil {
			d.log.Warn("notification failed", "kind", n.Kind, "submission", n.SubmissionID, "error", err)
			return
		}
		d.log.Info("notification sent", "kind", n.Kind, "submission", n.SubmissionID)
	}()
}

// Wait blocks until every dispatched notification has finished. Used on shutdown.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}
