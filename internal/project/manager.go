package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/activity"
	"github.com/fyrsmithlabs/questboard/internal/channel"
	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/notify"
	"github.com/fyrsmithlabs/questboard/internal/store"
)

// Manager drives the project lifecycle.
type Manager interface {
	// Create validates params and creates an open project with its creator enrolled.
	Create(ctx context.Context, params domain.CreateProjectParams) (*domain.Project, error)

	// Get retrieves a project by ID.
	Get(ctx context.Context, id string) (*domain.Project, error)

	// List returns projects newest first.
	List(ctx context.Context, opts ListOptions) ([]*domain.Project, error)

	// Roster returns the members of a project.
	Roster(ctx context.Context, id string) ([]domain.RosterEntry, error)

	// Join enrolls userID as a collaborator.
	Join(ctx context.Context, projectID, userID string) (*domain.RosterEntry, error)

	// Start moves an open project to in_progress.
	Start(ctx context.Context, projectID, byUserID string) (*domain.Project, error)

	// Cancel moves a non-terminal project to cancelled. No XP is awarded.
	Cancel(ctx context.Context, projectID, byUserID string) (*domain.Project, error)

	// ProvisionChannel creates the project's collaboration channel.
	ProvisionChannel(ctx context.Context, projectID, byUserID string) (*domain.Project, error)
}

// ListOptions filters List.
type ListOptions struct {
	Status    domain.ProjectStatus
	CreatorID string
	MemberID  string
	Limit     int
}

// Store is the persistence the manager needs.
type Store interface {
	CreateProject(ctx context.Context, p *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context, f store.ListFilter) ([]*domain.Project, error)
	Roster(ctx context.Context, projectID string) ([]domain.RosterEntry, error)
	JoinProject(ctx context.Context, projectID, userID string) (*domain.RosterEntry, *domain.Project, error)
	TransitionProject(ctx context.Context, projectID, byUserID string, to domain.ProjectStatus) (*domain.Project, []domain.RosterEntry, error)
	SetChannelRefs(ctx context.Context, projectID, channelRef, roleRef string) error
}

// ActivityRecorder appends activity entries.
type ActivityRecorder interface {
	Record(ctx context.Context, in activity.Entry) (*domain.ActivityEntry, error)
}

// Notifier sends notifications.
type Notifier interface {
	Send(ctx context.Context, m notify.Message) (*domain.Notification, error)
}

// Options holds the manager's dependencies.
type Options struct {
	Store    Store
	Activity ActivityRecorder
	Notifier Notifier
	Channel  channel.Adapter
	Logger   *zap.Logger

	// ChannelTimeout bounds each best-effort channel call.
	ChannelTimeout time.Duration
}

type manager struct {
	store          Store
	activity       ActivityRecorder
	notifier       Notifier
	channel        channel.Adapter
	logger         *zap.Logger
	channelTimeout time.Duration
}

// NewManager creates a project manager.
func NewManager(opts Options) Manager {
	m := &manager{
		store:          opts.Store,
		activity:       opts.Activity,
		notifier:       opts.Notifier,
		channel:        opts.Channel,
		logger:         opts.Logger,
		channelTimeout: opts.ChannelTimeout,
	}
	if m.channel == nil {
		m.channel = channel.Noop{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.channelTimeout <= 0 {
		m.channelTimeout = 3 * time.Second
	}
	return m
}

func (m *manager) Create(ctx context.Context, params domain.CreateProjectParams) (*domain.Project, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &domain.Project{
		ID:              uuid.NewString(),
		Title:           params.Title,
		Description:     params.Description,
		Difficulty:      params.Difficulty,
		CreatorID:       params.CreatorID,
		MaxParticipants: params.MaxParticipants,
		XPReward:        params.XPReward,
		Tags:            params.Tags,
		Skills:          params.Skills,
	}
	if err := m.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	m.logger.Info("project created",
		zap.String("project.id", p.ID),
		zap.String("user.id", p.CreatorID),
		zap.String("difficulty", string(p.Difficulty)))

	m.record(ctx, activity.Entry{
		UserID:      p.CreatorID,
		ProjectID:   p.ID,
		Kind:        domain.ActivityProjectCreated,
		Description: fmt.Sprintf("Created project %q", p.Title),
		Payload: domain.Payload{
			"difficulty":       string(p.Difficulty),
			"xp_reward":        p.XPReward,
			"max_participants": p.MaxParticipants,
		},
	})
	return p, nil
}

func (m *manager) Get(ctx context.Context, id string) (*domain.Project, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrInvalid)
	}
	return m.store.GetProject(ctx, id)
}

func (m *manager) List(ctx context.Context, opts ListOptions) ([]*domain.Project, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalid, opts.Status)
	}
	return m.store.ListProjects(ctx, store.ListFilter{
		Status:    opts.Status,
		CreatorID: opts.CreatorID,
		MemberID:  opts.MemberID,
		Limit:     opts.Limit,
	})
}

func (m *manager) Roster(ctx context.Context, id string) ([]domain.RosterEntry, error) {
	return m.store.Roster(ctx, id)
}

func (m *manager) Join(ctx context.Context, projectID, userID string) (*domain.RosterEntry, error) {
	entry, p, err := m.store.JoinProject(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	log := m.logger.With(zap.String("project.id", projectID), zap.String("user.id", userID))
	log.Info("project joined", zap.Int("participants", p.CurrentParticipants))

	m.record(ctx, activity.Entry{
		UserID:      userID,
		ProjectID:   projectID,
		Kind:        domain.ActivityProjectJoined,
		Description: fmt.Sprintf("Joined project %q", p.Title),
		Payload: domain.Payload{
			"current_participants": p.CurrentParticipants,
			"max_participants":     p.MaxParticipants,
		},
	})
	if userID != p.CreatorID {
		m.send(ctx, notify.Message{
			RecipientID: p.CreatorID,
			SenderID:    userID,
			Kind:        domain.NotifyProjectJoined,
			Title:       "New team member",
			Message:     fmt.Sprintf("A new member joined %q (%d/%d)", p.Title, p.CurrentParticipants, p.MaxParticipants),
			Payload:     domain.Payload{"project_id": projectID, "user_id": userID},
		})
	}
	if p.HasChannel() && p.RoleRef != "" {
		cctx, cancel := context.WithTimeout(ctx, m.channelTimeout)
		defer cancel()
		if err := m.channel.AddMember(cctx, p.RoleRef, userID); err != nil {
			log.Warn("failed to add member to collaboration channel",
				zap.String("role_ref", p.RoleRef), zap.Error(err))
		}
	}
	return entry, nil
}

func (m *manager) Start(ctx context.Context, projectID, byUserID string) (*domain.Project, error) {
	p, _, err := m.store.TransitionProject(ctx, projectID, byUserID, domain.StatusInProgress)
	if err != nil {
		return nil, err
	}
	m.logger.Info("project started", zap.String("project.id", projectID))
	m.record(ctx, activity.Entry{
		UserID:      byUserID,
		ProjectID:   projectID,
		Kind:        domain.ActivityProjectStarted,
		Description: fmt.Sprintf("Started project %q", p.Title),
		Payload:     domain.Payload{"participants": p.CurrentParticipants},
	})
	return p, nil
}

func (m *manager) Cancel(ctx context.Context, projectID, byUserID string) (*domain.Project, error) {
	p, members, err := m.store.TransitionProject(ctx, projectID, byUserID, domain.StatusCancelled)
	if err != nil {
		return nil, err
	}
	m.logger.Info("project cancelled", zap.String("project.id", projectID))
	m.record(ctx, activity.Entry{
		UserID:      byUserID,
		ProjectID:   projectID,
		Kind:        domain.ActivityProjectCancelled,
		Description: fmt.Sprintf("Cancelled project %q", p.Title),
		Payload:     domain.Payload{"participants": len(members)},
	})
	for _, member := range members {
		if member.Role != domain.RoleCollaborator {
			continue
		}
		m.send(ctx, notify.Message{
			RecipientID: member.UserID,
			SenderID:    byUserID,
			Kind:        domain.NotifyProjectCancelled,
			Title:       "Project cancelled",
			Message:     fmt.Sprintf("%q was cancelled by its creator", p.Title),
			Payload:     domain.Payload{"project_id": projectID},
		})
	}
	return p, nil
}

func (m *manager) ProvisionChannel(ctx context.Context, projectID, byUserID string) (*domain.Project, error) {
	p, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != byUserID {
		return nil, fmt.Errorf("%w: only the creator may provision a channel for %s", domain.ErrForbidden, projectID)
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("%w: project %s is %s", domain.ErrInvalidState, projectID, p.Status)
	}
	if p.HasChannel() {
		return nil, fmt.Errorf("%w: project %s already has a channel", domain.ErrInvalidState, projectID)
	}
	members, err := m.store.Roster(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, e := range members {
		ids = append(ids, e.UserID)
	}

	cctx, cancel := context.WithTimeout(ctx, m.channelTimeout)
	defer cancel()
	refs, err := m.channel.Provision(cctx, projectID, ids)
	if err != nil {
		if !errors.Is(err, domain.ErrDownstreamUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrDownstreamUnavailable, err)
		}
		return nil, err
	}
	if refs.ChannelRef == "" {
		return nil, fmt.Errorf("%w: no collaboration channel integration configured", domain.ErrDownstreamUnavailable)
	}
	// A concurrent provision or a cancel may have won since the read above.
	if err := m.store.SetChannelRefs(ctx, projectID, refs.ChannelRef, refs.RoleRef); err != nil {
		m.logger.Warn("orphaned collaboration channel; remove it by hand",
			zap.String("project.id", projectID),
			zap.String("channel_ref", refs.ChannelRef),
			zap.String("role_ref", refs.RoleRef),
			zap.Error(err))
		return nil, err
	}
	p.ChannelRef, p.RoleRef = refs.ChannelRef, refs.RoleRef

	m.logger.Info("collaboration channel provisioned",
		zap.String("project.id", projectID),
		zap.String("channel_ref", refs.ChannelRef))
	m.record(ctx, activity.Entry{
		UserID:      byUserID,
		ProjectID:   projectID,
		Kind:        domain.ActivityChannelProvisioned,
		Description: fmt.Sprintf("Opened a collaboration channel for %q", p.Title),
		Payload:     domain.Payload{"channel_ref": refs.ChannelRef},
	})
	return p, nil
}

func (m *manager) record(ctx context.Context, in activity.Entry) {
	if m.activity == nil {
		return
	}
	if _, err := m.activity.Record(ctx, in); err != nil {
		m.logger.Warn("failed to record activity",
			zap.String("activity.kind", string(in.Kind)),
			zap.String("project.id", in.ProjectID),
			zap.String("user.id", in.UserID),
			zap.Error(err))
	}
}

func (m *manager) send(ctx context.Context, msg notify.Message) {
	if m.notifier == nil {
		return
	}
	if _, err := m.notifier.Send(ctx, msg); err != nil {
		m.logger.Warn("failed to send notification",
			zap.String("notification.kind", string(msg.Kind)),
			zap.String("user.id", msg.RecipientID),
			zap.Error(err))
	}
}
