package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ripple/internal/featureflags"
	"ripple/internal/models"
	"ripple/internal/observability"
	"ripple/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
)

// Sender delivers a payload to one identity's live channel.
type Sender interface {
	SendTo(userID uint, payload []byte) bool
}

// DispatcherConfig sizes the delivery worker pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

type delivery struct {
	recipient uint
	action    models.NotificationAction
	payload   []byte
}

// Dispatcher turns domain events into stored notifications and live pushes.
// Persistence happens inside the caller's transaction; pushes are queued and
// delivered by a worker pool after commit.
type Dispatcher struct {
	store  *repository.Store
	sender Sender
	flags  *featureflags.Flags

	queue   chan delivery
	workers int
	wg      sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher. Call Start before relying on live delivery.
func NewDispatcher(store *repository.Store, sender Sender, flags *featureflags.Flags, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Dispatcher{
		store:   store,
		sender:  sender,
		flags:   flags,
		queue:   make(chan delivery, cfg.QueueSize),
		workers: cfg.Workers,
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Persist stores the notification for ev through the transaction-bound store tx.
// It returns nil, nil when the event is a self-notification and those are suppressed.
func (d *Dispatcher) Persist(ctx context.Context, tx *repository.Store, ev models.Event) (n *models.Notification, err error) {
	ctx, span := observability.StartSpan(ctx, "notifications.persist",
		attribute.String("notification.action", string(ev.Action())),
		attribute.Int64("notification.recipient_id", int64(ev.RecipientID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if ev.SelfInflicted() && d.flags.On(featureflags.SuppressSelfNotifications) {
		return nil, nil
	}

	n = &models.Notification{
		UserID:    ev.RecipientID,
		ActorID:   ev.ActorID,
		PostID:    ev.PostID,
		Action:    ev.Action(),
		Message:   RenderMessage(ev),
		CreatedAt: ev.OccurredAt,
	}
	if err = tx.Notifications.Create(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsPersisted.WithLabelValues(string(n.Action)).Inc()
	return n, nil
}

// Push queues live delivery of n to its recipient. It never blocks: when the queue is
// full or the dispatcher is shut down the push is dropped, and the recipient still sees
// the stored notification on the next read. It reports whether the push was queued.
func (d *Dispatcher) Push(ev models.Event, n *models.Notification) bool {
	if n == nil {
		return false
	}
	payload, err := NewPayload(ev, n).Encode()
	if err != nil {
		observability.Logger.Error("failed to encode notification payload", slog.String("error", err.Error()))
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		observability.NotificationDeliveries.WithLabelValues("dropped").Inc()
		return false
	}

	select {
	case d.queue <- delivery{recipient: n.UserID, action: n.Action, payload: payload}:
		return true
	default:
		observability.NotificationDeliveries.WithLabelValues("dropped").Inc()
		observability.Logger.Warn("notification queue full, dropping live push",
			slog.Uint64("recipient_id", uint64(n.UserID)),
			slog.String("action", string(n.Action)),
		)
		return false
	}
}

// Dispatch persists the notification in its own transaction and then queues the push.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.Event) (*models.Notification, error) {
	var n *models.Notification
	err := d.store.WithTransaction(ctx, func(tx *repository.Store) error {
		var err error
		n, err = d.Persist(ctx, tx, ev)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}
	d.Push(ev, n)
	return n, nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job delivery) {
	_, span := observability.StartSpan(context.Background(), "notifications.deliver",
		attribute.String("notification.action", string(job.action)),
		attribute.Int64("notification.recipient_id", int64(job.recipient)),
	)
	defer span.End()

	if d.sender.SendTo(job.recipient, job.payload) {
		observability.NotificationDeliveries.WithLabelValues("delivered").Inc()
		span.SetAttributes(attribute.Bool("notification.delivered", true))
		return
	}
	observability.NotificationDeliveries.WithLabelValues("offline").Inc()
	span.SetAttributes(attribute.Bool("notification.delivered", false))
}

// Shutdown stops accepting pushes and waits for queued deliveries to drain.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
