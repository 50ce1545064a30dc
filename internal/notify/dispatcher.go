// Package notify delivers in-app notifications to user inboxes.
package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/events"
)

var sentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "questboard",
		Subsystem: "notifications",
		Name:      "sent_total",
		Help:      "Total number of notifications sent",
	},
	[]string{"kind"},
)

// Store is the persistence the dispatcher needs.
type Store interface {
	InsertNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	SetNotificationRead(ctx context.Context, userID string, id int64, read bool) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Message is the input to Send.
type Message struct {
	RecipientID string
	SenderID    string
	Kind        domain.NotificationKind
	Title       string
	Message     string
	Payload     domain.Payload
}

// InboxOptions filters Inbox.
type InboxOptions struct {
	UnreadOnly bool
	Limit      int
}

// Dispatcher stores notifications and publishes them as events.
type Dispatcher struct {
	store     Store
	publisher events.Publisher
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher. A nil publisher disables events.
func NewDispatcher(store Store, publisher events.Publisher, logger *zap.Logger) *Dispatcher {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: store, publisher: publisher, logger: logger}
}

// Send delivers a notification. An unknown recipient or sender yields ErrUserNotFound.
func (d *Dispatcher) Send(ctx context.Context, m Message) (*domain.Notification, error) {
	n := &domain.Notification{
		RecipientID: m.RecipientID,
		SenderID:    m.SenderID,
		Kind:        m.Kind,
		Title:       m.Title,
		Message:     m.Message,
		Payload:     m.Payload,
	}
	if err := d.store.InsertNotification(ctx, n); err != nil {
		return nil, err
	}
	sentTotal.WithLabelValues(string(n.Kind)).Inc()
	if err := d.publisher.PublishNotification(ctx, n); err != nil {
		d.logger.Warn("failed to publish notification event",
			zap.Int64("notification.id", n.ID),
			zap.String("user.id", n.RecipientID),
			zap.Error(err))
	}
	return n, nil
}

// Inbox returns a user's notifications newest first.
func (d *Dispatcher) Inbox(ctx context.Context, userID string, opts InboxOptions) ([]domain.Notification, error) {
	return d.store.ListNotifications(ctx, userID, opts.UnreadOnly, opts.Limit)
}

// UnreadCount returns how many of a user's notifications are unread.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int, error) {
	return d.store.UnreadCount(ctx, userID)
}

// SetRead sets the read flag on one of userID's notifications.
func (d *Dispatcher) SetRead(ctx context.Context, userID string, id int64, read bool) error {
	return d.store.SetNotificationRead(ctx, userID, id, read)
}

// MarkAllRead marks every unread notification of userID as read.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return d.store.MarkAllRead(ctx, userID)
}
