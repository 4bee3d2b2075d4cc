package service

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/observability"
	"go.uber.org/zap"
)

// Notifier delivers a templated message to an address. Delivery is best-effort.
type Notifier interface {
	Send(ctx context.Context, address string, kind domain.NotificationKind, data map[string]any) error
}

// EventPublisher emits record lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.StatusEvent) error
}

// Dispatcher runs post-commit side effects in the background. A failing
// side effect is logged and counted, never returned to the caller.
type Dispatcher struct {
	notifier      Notifier
	events        EventPublisher
	operatorEmail string
	timeout       time.Duration
	wg            sync.WaitGroup
}

// NewDispatcher accepts nil collaborators; the matching side effect is skipped.
func NewDispatcher(notifier Notifier, events EventPublisher, operatorEmail string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		notifier:      notifier,
		events:        events,
		operatorEmail: operatorEmail,
		timeout:       timeout,
	}
}

// Notify sends kind to address in the background.
func (d *Dispatcher) Notify(address string, kind domain.NotificationKind, data map[string]any) {
	if d == nil || d.notifier == nil || address == "" {
		return
	}
	d.run(func(ctx context.Context) {
		if err := d.notifier.Send(ctx, address, kind, data); err != nil {
			observability.IncrementNotification(string(kind), "failed")
			zap.L().Warn("notification delivery failed",
				zap.String("kind", string(kind)),
				zap.String("address", address),
				zap.Error(err),
			)
			return
		}
		observability.IncrementNotification(string(kind), "sent")
	})
}

// NotifyOperator sends kind to the configured operator address, if any.
func (d *Dispatcher) NotifyOperator(kind domain.NotificationKind, data map[string]any) {
	if d == nil {
		return
	}
	d.Notify(d.operatorEmail, kind, data)
}

// Publish emits event in the background.
func (d *Dispatcher) Publish(event domain.StatusEvent) {
	if d == nil || d.events == nil {
		return
	}
	d.run(func(ctx context.Context) {
		if err := d.events.Publish(ctx, event); err != nil {
			observability.IncrementEventPublish("failed")
			zap.L().Warn("status event publish failed",
				zap.String("transaction_id", event.TransactionID.String()),
				zap.String("status", string(event.To)),
				zap.Error(err),
			)
			return
		}
		observability.IncrementEventPublish("published")
	})
}

// Wait blocks until every side effect started so far has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) run(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		fn(ctx)
	}()
}
