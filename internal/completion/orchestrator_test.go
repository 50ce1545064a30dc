package completion

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/questboard/internal/activity"
	"github.com/fyrsmithlabs/questboard/internal/channel"
	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/notify"
	"github.com/fyrsmithlabs/questboard/internal/store"
	"github.com/fyrsmithlabs/questboard/internal/telemetry"
	"github.com/fyrsmithlabs/questboard/internal/xp"
)

type failingChannel struct {
	channel.Noop
	calls int
	mu    sync.Mutex
}

func (f *failingChannel) AnnounceCompletion(context.Context, string, channel.ProjectSummary, []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("chat api unavailable")
}

// flakyLedger fails awards for one user and delegates the rest.
type flakyLedger struct {
	next   Awarder
	failOn string
}

func (l *flakyLedger) Award(ctx context.Context, userID string, amount int64, reason string, opts ...xp.AwardOption) (*xp.Result, error) {
	if userID == l.failOn {
		return nil, errors.New("database is locked")
	}
	return l.next.Award(ctx, userID, amount, reason, opts...)
}

type fixture struct {
	store    *store.Store
	ledger   *xp.Ledger
	activity *activity.Log
	notify   *notify.Dispatcher
	logs     *observer.ObservedLogs
	logger   *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "completion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	log := activity.NewLog(s, nil, logger)
	return &fixture{
		store:    s,
		ledger:   xp.NewLedger(s, log, logger),
		activity: log,
		notify:   notify.NewDispatcher(s, nil, logger),
		logs:     logs,
		logger:   logger,
	}
}

func (f *fixture) orchestrator(opts ...func(*Options)) *Orchestrator {
	o := Options{
		Store:    f.store,
		Ledger:   f.ledger,
		Activity: f.activity,
		Notifier: f.notify,
		Logger:   f.logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return New(o)
}

func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), uuid.NewString(), name)
	require.NoError(t, err)
	return u
}

// project creates a project with reward 150 and enrolls the given collaborators.
func (f *fixture) project(t *testing.T, creator *domain.User, collaborators ...*domain.User) *domain.Project {
	t.Helper()
	ctx := context.Background()
	p := &domain.Project{
		ID:              uuid.NewString(),
		Title:           "Write a tiny database",
		Difficulty:      domain.DifficultyIntermediate,
		CreatorID:       creator.ID,
		MaxParticipants: 5,
		XPReward:        150,
	}
	require.NoError(t, f.store.CreateProject(ctx, p))
	for _, c := range collaborators {
		_, _, err := f.store.JoinProject(ctx, p.ID, c.ID)
		require.NoError(t, err)
	}
	return p
}

func (f *fixture) totalXP(t *testing.T, userID string) int64 {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.TotalXP
}

func TestComplete_AwardsEveryParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")
	collab := f.user(t, "collab")
	_, err := f.ledger.Award(ctx, collab.ID, 40, "earlier work")
	require.NoError(t, err)
	p := f.project(t, creator, collab)

	res, err := f.orchestrator().Complete(ctx, p.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.XPAwarded)
	assert.Empty(t, res.StepErrors)
	assert.False(t, res.CompletedAt.IsZero())
	require.Len(t, res.Participants, 2)

	c, err := f.store.GetUser(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), c.TotalXP)
	assert.Equal(t, 2, c.Level)

	co, err := f.store.GetUser(ctx, collab.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(190), co.TotalXP)
	assert.Equal(t, 2, co.Level)

	for _, userID := range []string{creator.ID, collab.ID} {
		entries, err := f.activity.ListForUser(ctx, userID, 20)
		require.NoError(t, err)
		kinds := map[domain.ActivityKind]int{}
		for _, e := range entries {
			kinds[e.Kind]++
		}
		assert.Equal(t, 1, kinds[domain.ActivityProjectCompleted], "user %s", userID)
		assert.Equal(t, 1, kinds[domain.ActivityLevelUp], "user %s", userID)

		inbox, err := f.notify.Inbox(ctx, userID, notify.InboxOptions{})
		require.NoError(t, err)
		notes := map[domain.NotificationKind]int{}
		for _, n := range inbox {
			notes[n.Kind]++
		}
		assert.Equal(t, 1, notes[domain.NotifyProjectCompleted], "user %s", userID)
		assert.Equal(t, 1, notes[domain.NotifyLevelUp], "user %s", userID)
	}

	got, err := f.store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestComplete_SecondCallIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")
	collab := f.user(t, "collab")
	p := f.project(t, creator, collab)
	o := f.orchestrator()

	res, err := o.Complete(ctx, p.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.XPAwarded)

	_, err = o.Complete(ctx, p.ID, creator.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
	assert.Equal(t, domain.KindAlreadyCompleted, domain.KindOf(err))

	assert.Equal(t, int64(150), f.totalXP(t, creator.ID))
	assert.Equal(t, int64(150), f.totalXP(t, collab.ID))
}

func TestComplete_ChannelFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")
	collab := f.user(t, "collab")
	p := f.project(t, creator, collab)
	require.NoError(t, f.store.SetChannelRefs(ctx, p.ID, "chan-1", "role-1"))

	ch := &failingChannel{}
	res, err := f.orchestrator(func(o *Options) { o.Channel = ch }).Complete(ctx, p.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.calls)
	require.Len(t, res.StepErrors, 1)
	assert.Contains(t, res.StepErrors[0], StepExternalSync)

	assert.Equal(t, int64(150), f.totalXP(t, creator.ID))
	assert.Equal(t, int64(150), f.totalXP(t, collab.ID))

	entries, err := f.activity.ListForProject(ctx, p.ID, 20)
	require.NoError(t, err)
	completed := 0
	for _, e := range entries {
		if e.Kind == domain.ActivityProjectCompleted {
			completed++
		}
	}
	assert.Equal(t, 2, completed)

	inbox, err := f.notify.Inbox(ctx, collab.ID, notify.InboxOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, inbox)

	warn := f.logs.FilterMessage("workflow step failed (non-fatal)").All()
	require.Len(t, warn, 1)
}

func TestComplete_AwardFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")
	collab := f.user(t, "collab")
	p := f.project(t, creator, collab)

	o := f.orchestrator(func(o *Options) { o.Ledger = &flakyLedger{next: f.ledger, failOn: collab.ID} })
	res, err := o.Complete(ctx, p.ID, creator.ID)
	require.NoError(t, err)

	require.Len(t, res.StepErrors, 1)
	assert.Contains(t, res.StepErrors[0], StepAwardXP)
	assert.Contains(t, res.StepErrors[0], "user="+collab.ID)

	byUser := map[string]ParticipantResult{}
	for _, pr := range res.Participants {
		byUser[pr.UserID] = pr
	}
	assert.True(t, byUser[creator.ID].Awarded)
	assert.False(t, byUser[collab.ID].Awarded)
	assert.NotEmpty(t, byUser[collab.ID].Error)

	assert.Equal(t, int64(150), f.totalXP(t, creator.ID))
	assert.Zero(t, f.totalXP(t, collab.ID))

	failures := f.logs.FilterMessage("workflow step failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, collab.ID, failures[0].ContextMap()["user.id"])

	got, err := f.store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status, "award failures never roll back the transition")
}

func TestComplete_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")
	collab := f.user(t, "collab")
	o := f.orchestrator()

	p := f.project(t, creator, collab)
	_, err := o.Complete(ctx, p.ID, collab.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = o.Complete(ctx, "missing", creator.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cancelled := f.project(t, creator)
	_, _, err = f.store.TransitionProject(ctx, cancelled.ID, creator.ID, domain.StatusCancelled)
	require.NoError(t, err)
	_, err = o.Complete(ctx, cancelled.ID, creator.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	assert.Zero(t, f.totalXP(t, creator.ID))
	assert.Zero(t, f.totalXP(t, collab.ID))
}

func TestComplete_ConcurrentCallsAwardOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")
	collab := f.user(t, "collab")
	p := f.project(t, creator, collab)
	o := f.orchestrator()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Complete(ctx, p.ID, creator.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			if assert.ErrorIs(t, err, domain.ErrAlreadyCompleted) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 9, rejected)
	assert.Equal(t, int64(150), f.totalXP(t, creator.ID))
	assert.Equal(t, int64(150), f.totalXP(t, collab.ID))
}

func TestComplete_SurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	creator := f.user(t, "creator")
	collab := f.user(t, "collab")
	p := f.project(t, creator, collab)

	ctx, cancel := context.WithCancel(context.Background())
	o := f.orchestrator(func(o *Options) {
		o.Notifier = cancelOnSend{next: f.notify, cancel: cancel}
	})
	res, err := o.Complete(ctx, p.ID, creator.ID)
	require.NoError(t, err)
	assert.Empty(t, res.StepErrors)
	assert.Equal(t, int64(150), f.totalXP(t, collab.ID))
}

// cancelOnSend cancels the caller's context on the first notification.
type cancelOnSend struct {
	next   Notifier
	cancel context.CancelFunc
}

func (c cancelOnSend) Send(ctx context.Context, m notify.Message) (*domain.Notification, error) {
	c.cancel()
	return c.next.Send(ctx, m)
}

func TestComplete_EmitsStepSpans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	tt.Install(t)

	f := newFixture(t)
	creator := f.user(t, "creator")
	p := f.project(t, creator)

	_, err := f.orchestrator().Complete(context.Background(), p.ID, creator.ID)
	require.NoError(t, err)

	tt.AssertSpanExists(t, "completion.Complete")
	tt.AssertSpanAttribute(t, "completion.Complete", "project.id", p.ID)
	tt.AssertSpanExists(t, workflowName+"."+StepAuthorizeAndTransition)
	tt.AssertSpanExists(t, workflowName+"."+StepAwardXP)
	tt.AssertSpanExists(t, workflowName+"."+StepExternalSync)
}
