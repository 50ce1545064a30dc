// Package completion drives the project completion workflow.
//
// Steps and their severities:
//
//	authorize_and_transition  critical  the project becomes completed exactly once
//	award_xp                  high      every participant receives the project reward
//	log_and_notify            high      activity entry and inbox notification per participant
//	external_sync             low       completion announced on the collaboration channel
//
// Only the first step can fail the call. Once it commits, later failures are
// logged with enough context to retry by hand and reported in Result.StepErrors.
package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/questboard/internal/activity"
	"github.com/fyrsmithlabs/questboard/internal/channel"
	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/notify"
	"github.com/fyrsmithlabs/questboard/internal/workflows"
	"github.com/fyrsmithlabs/questboard/internal/xp"
)

const (
	workflowName        = "complete_project"
	instrumentationName = "github.com/fyrsmithlabs/questboard/internal/completion"
)

// Step names.
const (
	StepAuthorizeAndTransition = "authorize_and_transition"
	StepAwardXP                = "award_xp"
	StepLogAndNotify           = "log_and_notify"
	StepExternalSync           = "external_sync"
)

var completionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "questboard",
		Subsystem: "completion",
		Name:      "runs_total",
		Help:      "Completion attempts by outcome (completed, rejected, degraded)",
	},
	[]string{"outcome"},
)

// Store performs the durable transition.
type Store interface {
	CompleteProject(ctx context.Context, projectID, byUserID string) (*domain.Project, []string, error)
}

// Awarder grants XP.
type Awarder interface {
	Award(ctx context.Context, userID string, amount int64, reason string, opts ...xp.AwardOption) (*xp.Result, error)
}

// ActivityRecorder appends activity entries.
type ActivityRecorder interface {
	Record(ctx context.Context, in activity.Entry) (*domain.ActivityEntry, error)
}

// Notifier sends notifications.
type Notifier interface {
	Send(ctx context.Context, m notify.Message) (*domain.Notification, error)
}

// Config tunes the best-effort steps.
type Config struct {
	// MaxParallel bounds concurrent participant awards.
	MaxParallel int
	// ParticipantTimeout bounds one participant's award and notifications.
	ParticipantTimeout time.Duration
	// ChannelTimeout bounds the completion announcement.
	ChannelTimeout time.Duration
}

// Options holds the orchestrator's dependencies.
type Options struct {
	Store    Store
	Ledger   Awarder
	Activity ActivityRecorder
	Notifier Notifier
	Channel  channel.Adapter
	Logger   *zap.Logger
	Config   Config
}

// ParticipantResult reports what happened for one participant.
type ParticipantResult struct {
	UserID    string `json:"user_id"`
	Awarded   bool   `json:"awarded"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	TotalXP   int64  `json:"total_xp"`
	LeveledUp bool   `json:"leveled_up"`
	Error     string `json:"error,omitempty"`
}

// Result is returned by a successful Complete.
type Result struct {
	ProjectID    string              `json:"project_id"`
	XPAwarded    int64               `json:"xp_awarded"`
	CompletedAt  time.Time           `json:"completed_at"`
	Participants []ParticipantResult `json:"participants"`
	StepErrors   []string            `json:"step_errors,omitempty"`
}

// Orchestrator completes projects.
type Orchestrator struct {
	store    Store
	ledger   Awarder
	activity ActivityRecorder
	notifier Notifier
	channel  channel.Adapter
	logger   *zap.Logger
	cfg      Config
	tracer   trace.Tracer
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:    opts.Store,
		ledger:   opts.Ledger,
		activity: opts.Activity,
		notifier: opts.Notifier,
		channel:  opts.Channel,
		logger:   opts.Logger,
		cfg:      opts.Config,
		tracer:   otel.Tracer(instrumentationName),
	}
	if o.channel == nil {
		o.channel = channel.Noop{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.cfg.MaxParallel <= 0 {
		o.cfg.MaxParallel = 8
	}
	if o.cfg.ParticipantTimeout <= 0 {
		o.cfg.ParticipantTimeout = 5 * time.Second
	}
	if o.cfg.ChannelTimeout <= 0 {
		o.cfg.ChannelTimeout = 3 * time.Second
	}
	return o
}

// Complete marks a project completed on behalf of its creator and rewards
// every participant. Errors come only from the transition: ErrNotFound,
// ErrForbidden, ErrAlreadyCompleted or ErrInvalidState.
func (o *Orchestrator) Complete(ctx context.Context, projectID, byUserID string) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "completion.Complete", trace.WithAttributes(
		attribute.String("project.id", projectID),
		attribute.String("user.id", byUserID),
	))
	defer span.End()

	logger := o.logger.With(zap.String("project.id", projectID))
	runner := workflows.NewRunner(workflowName, logger)

	var (
		project      *domain.Project
		participants []string
	)
	err := runner.Run(ctx, workflows.Step{
		Name:     StepAuthorizeAndTransition,
		Severity: workflows.ErrorSeverityCritical,
		Run: func(ctx context.Context) error {
			var err error
			project, participants, err = o.store.CompleteProject(ctx, projectID, byUserID)
			return err
		},
	})
	if err != nil {
		completionsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	logger.Info("project completed", zap.Int("participants", len(participants)))

	// The transition is durable; the caller going away must not strand awards.
	bgCtx := context.WithoutCancel(ctx)

	res := &Result{
		ProjectID:    project.ID,
		XPAwarded:    project.XPReward,
		Participants: make([]ParticipantResult, len(participants)),
	}
	if project.CompletedAt != nil {
		res.CompletedAt = *project.CompletedAt
	}

	_ = runner.Run(bgCtx, workflows.Step{
		Name:     StepAwardXP,
		Severity: workflows.ErrorSeverityHigh,
		Run: func(ctx context.Context) error {
			var g errgroup.Group
			g.SetLimit(o.cfg.MaxParallel)
			for i, userID := range participants {
				g.Go(func() error {
					res.Participants[i] = o.rewardParticipant(ctx, runner, project, byUserID, userID)
					return nil
				})
			}
			return g.Wait()
		},
	})

	_ = runner.Run(bgCtx, workflows.Step{
		Name:     StepExternalSync,
		Severity: workflows.ErrorSeverityLow,
		Run: func(ctx context.Context) error {
			if !project.HasChannel() {
				return nil
			}
			ctx, cancel := context.WithTimeout(ctx, o.cfg.ChannelTimeout)
			defer cancel()
			summary := channel.ProjectSummary{
				ProjectID:   project.ID,
				Title:       project.Title,
				Difficulty:  string(project.Difficulty),
				XPAwarded:   project.XPReward,
				CompletedAt: res.CompletedAt,
			}
			if err := o.channel.AnnounceCompletion(ctx, project.ChannelRef, summary, participants); err != nil {
				return fmt.Errorf("announce on %s: %w", project.ChannelRef, err)
			}
			return nil
		},
	})

	res.StepErrors = runner.Errors()
	if len(res.StepErrors) > 0 {
		completionsTotal.WithLabelValues("degraded").Inc()
		span.SetAttributes(attribute.Int("completion.step_errors", len(res.StepErrors)))
	} else {
		completionsTotal.WithLabelValues("completed").Inc()
	}
	return res, nil
}

// rewardParticipant awards XP to one participant and, when that succeeds,
// records the completion in their activity log and inbox.
func (o *Orchestrator) rewardParticipant(ctx context.Context, runner *workflows.Runner, project *domain.Project, creatorID, userID string) ParticipantResult {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ParticipantTimeout)
	defer cancel()

	pr := ParticipantResult{UserID: userID}
	reason := fmt.Sprintf("completed project %q", project.Title)
	retry := fmt.Sprintf("project=%s user=%s amount=%d reason=%q", project.ID, userID, project.XPReward, reason)
	fields := []zap.Field{zap.String("user.id", userID), zap.Int64("amount", project.XPReward)}

	award, err := o.ledger.Award(ctx, userID, project.XPReward, reason, xp.WithProject(project.ID))
	if err != nil {
		runner.Record(ctx, StepAwardXP, workflows.ErrorSeverityHigh, err, retry, fields...)
		pr.Error = err.Error()
		return pr
	}
	pr.Awarded = true
	pr.OldLevel, pr.NewLevel = award.OldLevel, award.NewLevel
	pr.TotalXP, pr.LeveledUp = award.TotalXP, award.LeveledUp

	if o.activity != nil {
		if _, err := o.activity.Record(ctx, activity.Entry{
			UserID:      userID,
			ProjectID:   project.ID,
			Kind:        domain.ActivityProjectCompleted,
			Description: fmt.Sprintf("Completed project %q", project.Title),
			Payload: domain.Payload{
				"xp_earned":  project.XPReward,
				"total_xp":   award.TotalXP,
				"difficulty": string(project.Difficulty),
			},
		}); err != nil {
			runner.Record(ctx, StepLogAndNotify, workflows.ErrorSeverityHigh, err, retry, fields...)
		}
	}
	if o.notifier == nil {
		return pr
	}
	if _, err := o.notifier.Send(ctx, notify.Message{
		RecipientID: userID,
		SenderID:    creatorID,
		Kind:        domain.NotifyProjectCompleted,
		Title:       "Project completed",
		Message:     fmt.Sprintf("You earned %d XP for completing %q", project.XPReward, project.Title),
		Payload: domain.Payload{
			"project_id": project.ID,
			"xp_earned":  project.XPReward,
			"total_xp":   award.TotalXP,
			"new_level":  award.NewLevel,
		},
	}); err != nil {
		runner.Record(ctx, StepLogAndNotify, workflows.ErrorSeverityHigh, err, retry, fields...)
	}
	if award.LeveledUp {
		if _, err := o.notifier.Send(ctx, notify.Message{
			RecipientID: userID,
			Kind:        domain.NotifyLevelUp,
			Title:       "Level up!",
			Message:     fmt.Sprintf("You reached level %d", award.NewLevel),
			Payload: domain.Payload{
				"old_level":  award.OldLevel,
				"new_level":  award.NewLevel,
				"project_id": project.ID,
			},
		}); err != nil {
			runner.Record(ctx, StepLogAndNotify, workflows.ErrorSeverityHigh, err, retry, fields...)
		}
	}
	return pr
}
