// Package xp implements the XP ledger: atomic awards, level recomputation,
// leaderboards and per-user progress.
package xp

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/leveling"
	"github.com/fyrsmithlabs/questboard/internal/store"
)

var (
	// AwardedTotal counts XP granted across all users.
	AwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "questboard",
			Name:      "xp_awarded_total",
			Help:      "Total XP awarded",
		},
	)

	// LevelUpsTotal counts awards that crossed at least one level.
	LevelUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "questboard",
			Name:      "level_ups_total",
			Help:      "Total number of level ups",
		},
	)
)

// Store is the persistence the ledger needs.
type Store interface {
	AwardXP(ctx context.Context, userID string, amount int64, reason, projectID string) (*store.Award, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error)
}

// ActivityPublisher announces activity rows the ledger wrote itself.
type ActivityPublisher interface {
	Published(ctx context.Context, e *domain.ActivityEntry)
}

// Result is the outcome of an award.
type Result struct {
	UserID    string `json:"user_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	TotalXP   int64  `json:"total_xp"`
	LeveledUp bool   `json:"leveled_up"`
}

type awardOptions struct {
	projectID string
}

// AwardOption configures Award.
type AwardOption func(*awardOptions)

// WithProject ties the award to a project in the audit trail.
func WithProject(projectID string) AwardOption {
	return func(o *awardOptions) { o.projectID = projectID }
}

// Ledger grants XP.
type Ledger struct {
	store    Store
	activity ActivityPublisher
	logger   *zap.Logger
}

// NewLedger creates a ledger. activity may be nil.
func NewLedger(store Store, activity ActivityPublisher, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, activity: activity, logger: logger}
}

// Award adds amount XP to userID. Non-positive amounts fail with
// ErrInvalidAmount and unknown users with ErrUserNotFound; neither has side effects.
func (l *Ledger) Award(ctx context.Context, userID string, amount int64, reason string, opts ...AwardOption) (*Result, error) {
	var o awardOptions
	for _, opt := range opts {
		opt(&o)
	}

	award, err := l.store.AwardXP(ctx, userID, amount, reason, o.projectID)
	if err != nil {
		return nil, err
	}

	AwardedTotal.Add(float64(amount))
	res := &Result{
		UserID:    award.UserID,
		OldLevel:  award.OldLevel,
		NewLevel:  award.NewLevel,
		TotalXP:   award.TotalXP,
		LeveledUp: award.NewLevel > award.OldLevel,
	}
	l.logger.Info("xp awarded",
		zap.String("user.id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
		zap.String("project.id", o.projectID),
		zap.Int64("total_xp", res.TotalXP),
		zap.Int("level", res.NewLevel))

	if res.LeveledUp {
		LevelUpsTotal.Inc()
		if l.activity != nil && award.LevelUp != nil {
			l.activity.Published(ctx, award.LevelUp)
		}
	}
	return res, nil
}

// Progress returns the level progress of a stored user.
func (l *Ledger) Progress(ctx context.Context, userID string) (leveling.Progress, error) {
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return leveling.Progress{}, err
	}
	return leveling.ProgressOf(u.TotalXP), nil
}

// Leaderboard returns the top users by total XP.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return l.store.Leaderboard(ctx, limit)
}

// History returns a user's XP transactions newest first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error) {
	return l.store.XPHistory(ctx, userID, limit)
}
