// Package activity records the append-only activity log.
package activity

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/events"
)

var recordedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "questboard",
		Subsystem: "activity",
		Name:      "recorded_total",
		Help:      "Total number of activity entries recorded",
	},
	[]string{"kind"},
)

// Store is the persistence the log needs.
type Store interface {
	InsertActivity(ctx context.Context, e *domain.ActivityEntry) error
	ActivityForUser(ctx context.Context, userID string, limit int) ([]domain.ActivityEntry, error)
	ActivityForProject(ctx context.Context, projectID string, limit int) ([]domain.ActivityEntry, error)
}

// Entry is the input to Record.
type Entry struct {
	UserID      string
	ProjectID   string
	Kind        domain.ActivityKind
	Description string
	Payload     domain.Payload
}

// Log appends activity entries and publishes them as events.
type Log struct {
	store     Store
	publisher events.Publisher
	logger    *zap.Logger
}

// NewLog creates an activity log. A nil publisher disables events.
func NewLog(store Store, publisher events.Publisher, logger *zap.Logger) *Log {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{store: store, publisher: publisher, logger: logger}
}

// Record appends an entry. A referenced user or project that does not exist
// yields ErrUserNotFound or ErrNotFound.
func (l *Log) Record(ctx context.Context, in Entry) (*domain.ActivityEntry, error) {
	e := &domain.ActivityEntry{
		UserID:      in.UserID,
		ProjectID:   in.ProjectID,
		Kind:        in.Kind,
		Description: in.Description,
		Payload:     in.Payload,
	}
	if err := l.store.InsertActivity(ctx, e); err != nil {
		return nil, err
	}
	l.Published(ctx, e)
	return e, nil
}

// Published announces an entry that was already persisted, e.g. a level_up
// row written inside an XP award transaction.
func (l *Log) Published(ctx context.Context, e *domain.ActivityEntry) {
	recordedTotal.WithLabelValues(string(e.Kind)).Inc()
	if err := l.publisher.PublishActivity(ctx, e); err != nil {
		l.logger.Warn("failed to publish activity event",
			zap.Int64("activity.id", e.ID),
			zap.String("activity.kind", string(e.Kind)),
			zap.Error(err))
	}
}

// ListForUser returns a user's activity newest first.
func (l *Log) ListForUser(ctx context.Context, userID string, limit int) ([]domain.ActivityEntry, error) {
	return l.store.ActivityForUser(ctx, userID, limit)
}

// ListForProject returns a project's activity newest first.
func (l *Log) ListForProject(ctx context.Context, projectID string, limit int) ([]domain.ActivityEntry, error) {
	return l.store.ActivityForProject(ctx, projectID, limit)
}
