// Package events publishes questboard domain events to NATS.
//
// Publication is best-effort: the database is the source of truth and a
// missing event never invalidates a committed write. Events are published to:
//   - questboard.activity.{kind}
//   - questboard.notification.{recipient_id}
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

// DefaultSubjectPrefix is the root of every questboard subject.
const DefaultSubjectPrefix = "questboard"

// Publisher emits domain events.
type Publisher interface {
	PublishActivity(ctx context.Context, entry *domain.ActivityEntry) error
	PublishNotification(ctx context.Context, n *domain.Notification) error
}

// Envelope wraps every event on the wire.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NATSPublisher publishes events on a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher returns a publisher on nc. An empty prefix uses DefaultSubjectPrefix.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// ActivitySubject returns the subject an activity entry of kind is published on.
func ActivitySubject(prefix string, kind domain.ActivityKind) string {
	return fmt.Sprintf("%s.activity.%s", prefix, token(string(kind)))
}

// NotificationSubject returns the subject a user's notifications are published on.
func NotificationSubject(prefix, recipientID string) string {
	return fmt.Sprintf("%s.notification.%s", prefix, token(recipientID))
}

// PublishActivity publishes entry on questboard.activity.{kind}.
func (p *NATSPublisher) PublishActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	return p.publish(ctx, ActivitySubject(p.prefix, entry.Kind), "activity."+string(entry.Kind), entry.CreatedAt, entry)
}

// PublishNotification publishes n on questboard.notification.{recipient_id}.
func (p *NATSPublisher) PublishNotification(ctx context.Context, n *domain.Notification) error {
	return p.publish(ctx, NotificationSubject(p.prefix, n.RecipientID), "notification."+string(n.Kind), n.CreatedAt, n)
}

func (p *NATSPublisher) publish(ctx context.Context, subject, eventType string, at time.Time, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	body, err := json.Marshal(Envelope{Type: eventType, OccurredAt: at, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := p.nc.Publish(subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject), zap.String("type", eventType))
	return nil
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Nop discards every event. Used when NATS is disabled.
type Nop struct{}

func (Nop) PublishActivity(context.Context, *domain.ActivityEntry) error { return nil }

func (Nop) PublishNotification(context.Context, *domain.Notification) error { return nil }
