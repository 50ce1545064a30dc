package xp

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/store"
)

type recordingActivity struct {
	mu      sync.Mutex
	entries []*domain.ActivityEntry
}

func (r *recordingActivity) Published(_ context.Context, e *domain.ActivityEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func setup(t *testing.T) (*Ledger, *store.Store, *recordingActivity) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "xp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	rec := &recordingActivity{}
	return NewLedger(s, rec, nil), s, rec
}

func TestAward_Validation(t *testing.T) {
	ledger, s, _ := setup(t)
	ctx := context.Background()
	u, err := s.CreateUser(ctx, uuid.NewString(), "alice")
	require.NoError(t, err)

	for _, amount := range []int64{0, -5} {
		_, err := ledger.Award(ctx, u.ID, amount, "bad")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
	_, err = ledger.Award(ctx, "ghost", 10, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TotalXP)
}

func TestAward_IncreasesTotalByExactlyAmount(t *testing.T) {
	ledger, s, rec := setup(t)
	ctx := context.Background()
	u, err := s.CreateUser(ctx, uuid.NewString(), "alice")
	require.NoError(t, err)

	before := testutil.ToFloat64(AwardedTotal)
	res, err := ledger.Award(ctx, u.ID, 49, "almost")
	require.NoError(t, err)
	assert.Equal(t, &Result{UserID: u.ID, OldLevel: 0, NewLevel: 0, TotalXP: 49}, res)
	assert.Empty(t, rec.entries)
	assert.InDelta(t, before+49, testutil.ToFloat64(AwardedTotal), 0.001)

	res, err = ledger.Award(ctx, u.ID, 1, "there", WithProject(""))
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 1, res.NewLevel)
	assert.Equal(t, int64(50), res.TotalXP)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, domain.ActivityLevelUp, rec.entries[0].Kind)
}

func TestAward_ScenarioLevelCrossing(t *testing.T) {
	// A user at 0 XP receiving 200 XP lands on level 2 with 50 XP into it.
	ledger, s, rec := setup(t)
	ctx := context.Background()
	u, err := s.CreateUser(ctx, uuid.NewString(), "bob")
	require.NoError(t, err)

	res, err := ledger.Award(ctx, u.ID, 200, "project completion")
	require.NoError(t, err)
	assert.Equal(t, 0, res.OldLevel)
	assert.Equal(t, 2, res.NewLevel)
	require.Len(t, rec.entries, 1, "one level_up entry even when two levels are crossed")

	progress, err := ledger.Progress(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Level)
	assert.Equal(t, int64(50), progress.IntoLevel)

	history, err := ledger.History(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(200), history[0].Amount)
}

func TestLeaderboard(t *testing.T) {
	ledger, s, _ := setup(t)
	ctx := context.Background()
	a, err := s.CreateUser(ctx, uuid.NewString(), "alice")
	require.NoError(t, err)
	b, err := s.CreateUser(ctx, uuid.NewString(), "bob")
	require.NoError(t, err)

	_, err = ledger.Award(ctx, a.ID, 10, "x")
	require.NoError(t, err)
	_, err = ledger.Award(ctx, b.ID, 20, "x")
	require.NoError(t, err)

	board, err := ledger.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, b.ID, board[0].UserID)
	assert.Equal(t, 2, board[1].Rank)
}

func TestProgress_UnknownUser(t *testing.T) {
	ledger, _, _ := setup(t)
	_, err := ledger.Progress(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
