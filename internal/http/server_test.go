package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/completion"
	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/leveling"
	"github.com/fyrsmithlabs/questboard/internal/services"
	"github.com/fyrsmithlabs/questboard/internal/store"
	"github.com/fyrsmithlabs/questboard/internal/xp"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := services.Wire(services.WireOptions{Store: st, Logger: zap.NewNop()})
	server, err := NewServer(reg, zap.NewNop(), nil)
	require.NoError(t, err)
	return server
}

// do sends a JSON request as userID (empty for anonymous) and returns the recorder.
func do(t *testing.T, s *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertErrorKind(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[ErrorBody](t, rec)
	assert.Equal(t, kind, body.Error.Kind)
	assert.NotEmpty(t, body.Error.Message)
}

func createUser(t *testing.T, s *Server, name string) *domain.User {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/users", "", CreateUserRequest{Username: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*domain.User](t, rec)
}

func createProject(t *testing.T, s *Server, creatorID string, reward int64) *domain.Project {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/projects", creatorID, CreateProjectRequest{
		Title:           "Build a bot",
		Difficulty:      string(domain.DifficultyBeginner),
		MaxParticipants: 3,
		XPReward:        reward,
		Tags:            []string{"go"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*domain.Project](t, rec)
}

func TestNewServer(t *testing.T) {
	reg := services.NewRegistry(services.Options{})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(reg, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, "127.0.0.1", server.config.Host)
		assert.Equal(t, 8420, server.config.Port)
	})

	t.Run("keeps provided config", func(t *testing.T) {
		cfg := &Config{Host: "0.0.0.0", Port: 9000}
		server, err := NewServer(reg, zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(reg, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when registry is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service registry is required")
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("ok with a reachable store", func(t *testing.T) {
		server := setupTestServer(t)
		rec := do(t, server, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decode[HealthResponse](t, rec)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "ok", resp.Store)
	})

	t.Run("degraded when the store is closed", func(t *testing.T) {
		st, err := store.Open(filepath.Join(t.TempDir(), "closed.db"))
		require.NoError(t, err)
		require.NoError(t, st.Close())
		server, err := NewServer(services.Wire(services.WireOptions{Store: st}), zap.NewNop(), nil)
		require.NoError(t, err)

		rec := do(t, server, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", decode[HealthResponse](t, rec).Status)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind string
		want int
	}{
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindUserNotFound, http.StatusNotFound},
		{domain.KindForbidden, http.StatusForbidden},
		{domain.KindInvalidState, http.StatusConflict},
		{domain.KindFull, http.StatusConflict},
		{domain.KindAlreadyMember, http.StatusConflict},
		{domain.KindAlreadyCompleted, http.StatusConflict},
		{domain.KindInvalidAmount, http.StatusBadRequest},
		{domain.KindInvalid, http.StatusBadRequest},
		{domain.KindDownstreamUnavailable, http.StatusBadGateway},
		{KindUnauthenticated, http.StatusUnauthorized},
		{domain.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestUsers(t *testing.T) {
	server := setupTestServer(t)

	t.Run("create and get", func(t *testing.T) {
		u := createUser(t, server, "alice")
		assert.Equal(t, 0, u.Level)
		assert.Zero(t, u.TotalXP)

		rec := do(t, server, http.MethodGet, "/api/v1/users/"+u.ID, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", decode[*domain.User](t, rec).Username)
	})

	t.Run("rejects invalid username", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/users", "", CreateUserRequest{Username: ""})
		assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalid)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalid)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/users/nobody", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAwardAndProgress(t *testing.T) {
	server := setupTestServer(t)
	u := createUser(t, server, "bob")

	rec := do(t, server, http.MethodPost, "/api/v1/xp/award", "operator", AwardRequest{UserID: u.ID, Amount: 160, Reason: "bonus"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[xp.Result](t, rec)
	assert.Equal(t, 0, res.OldLevel)
	assert.Equal(t, 2, res.NewLevel)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, int64(160), res.TotalXP)

	rec = do(t, server, http.MethodGet, "/api/v1/users/"+u.ID+"/progress", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decode[ProgressResponse](t, rec)
	assert.Equal(t, u.ID, progress.UserID)
	assert.Equal(t, leveling.ProgressOf(160), progress.Progress)

	rec = do(t, server, http.MethodGet, "/api/v1/users/"+u.ID+"/xp", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]domain.XPTransaction](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "bonus", history[0].Reason)

	t.Run("anonymous award rejected", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/xp/award", "", AwardRequest{UserID: u.ID, Amount: 10, Reason: "sneaky"})
		assertErrorKind(t, rec, http.StatusUnauthorized, KindUnauthenticated)

		rec = do(t, server, http.MethodGet, "/api/v1/users/"+u.ID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(160), decode[domain.User](t, rec).TotalXP)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/xp/award", "operator", AwardRequest{UserID: u.ID, Amount: 0, Reason: "nothing"})
		assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalidAmount)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/xp/award", "operator", AwardRequest{UserID: "ghost", Amount: 10, Reason: "x"})
		assertErrorKind(t, rec, http.StatusNotFound, domain.KindUserNotFound)
	})

	t.Run("missing reason", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/xp/award", "operator", AwardRequest{UserID: u.ID, Amount: 10})
		assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalid)
	})

	t.Run("leaderboard", func(t *testing.T) {
		createUser(t, server, "carol")
		rec := do(t, server, http.MethodGet, "/api/v1/leaderboard?limit=5", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		board := decode[[]domain.LeaderboardEntry](t, rec)
		require.Len(t, board, 2)
		assert.Equal(t, u.ID, board[0].UserID)
		assert.Equal(t, 1, board[0].Rank)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/leaderboard?limit=abc", "", nil)
		assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalid)
	})
}

func TestLevels(t *testing.T) {
	server := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/api/v1/levels?max=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, leveling.Table(5), decode[[]leveling.Row](t, rec))

	rec = do(t, server, http.MethodGet, "/api/v1/levels?max=0", "", nil)
	assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalid)
}

func TestProjectLifecycle(t *testing.T) {
	server := setupTestServer(t)
	creator := createUser(t, server, "creator")
	member := createUser(t, server, "member")

	t.Run("create requires caller", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/projects", "", CreateProjectRequest{Title: "Nope"})
		assertErrorKind(t, rec, http.StatusUnauthorized, KindUnauthenticated)
	})

	t.Run("reward outside difficulty window", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/projects", creator.ID, CreateProjectRequest{
			Title:           "Too generous",
			Difficulty:      string(domain.DifficultyBeginner),
			MaxParticipants: 3,
			XPReward:        5000,
		})
		assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalid)
	})

	p := createProject(t, server, creator.ID, 60)
	assert.Equal(t, domain.StatusOpen, p.Status)
	assert.Equal(t, creator.ID, p.CreatorID)
	assert.Equal(t, 1, p.CurrentParticipants)

	rec := do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/join", member.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.RoleCollaborator, decode[*domain.RosterEntry](t, rec).Role)

	t.Run("join twice", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/join", member.ID, nil)
		assertErrorKind(t, rec, http.StatusConflict, domain.KindAlreadyMember)
	})

	t.Run("only the creator completes", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/complete", member.ID, nil)
		assertErrorKind(t, rec, http.StatusForbidden, domain.KindForbidden)
	})

	rec = do(t, server, http.MethodGet, "/api/v1/projects/"+p.ID+"/roster", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.RosterEntry](t, rec), 2)

	rec = do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/start", creator.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StatusInProgress, decode[*domain.Project](t, rec).Status)

	rec = do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/complete", creator.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[completion.Result](t, rec)
	assert.Equal(t, p.ID, res.ProjectID)
	assert.Equal(t, int64(60), res.XPAwarded)
	assert.Len(t, res.Participants, 2)
	assert.Empty(t, res.StepErrors)

	t.Run("complete twice", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/complete", creator.ID, nil)
		assertErrorKind(t, rec, http.StatusConflict, domain.KindAlreadyCompleted)
	})

	t.Run("cancel after completion", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/cancel", creator.ID, nil)
		assertErrorKind(t, rec, http.StatusConflict, domain.KindInvalidState)
	})

	t.Run("members were rewarded", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/users/"+member.ID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		u := decode[*domain.User](t, rec)
		assert.Equal(t, int64(60), u.TotalXP)
		assert.Equal(t, 1, u.Level)
	})

	t.Run("list by status", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/projects?status=completed", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[[]*domain.Project](t, rec)
		require.Len(t, list, 1)
		assert.Equal(t, p.ID, list[0].ID)

		rec = do(t, server, http.MethodGet, "/api/v1/projects?status=open", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", string(bytes.TrimSpace(rec.Body.Bytes())))

		rec = do(t, server, http.MethodGet, "/api/v1/projects?status=bogus", "", nil)
		assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalid)
	})

	t.Run("project activity", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/projects/"+p.ID+"/activity", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		entries := decode[[]domain.ActivityEntry](t, rec)
		kinds := make(map[domain.ActivityKind]int)
		for _, e := range entries {
			kinds[e.Kind]++
		}
		assert.Equal(t, 1, kinds[domain.ActivityProjectCreated])
		assert.Equal(t, 1, kinds[domain.ActivityProjectJoined])
		assert.Equal(t, 2, kinds[domain.ActivityProjectCompleted])
	})

	t.Run("unknown project", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/projects/missing", "", nil)
		assertErrorKind(t, rec, http.StatusNotFound, domain.KindNotFound)
	})
}

func TestProvisionChannelWithoutIntegration(t *testing.T) {
	server := setupTestServer(t)
	creator := createUser(t, server, "owner")
	p := createProject(t, server, creator.ID, 50)

	rec := do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/channel", creator.ID, nil)
	assertErrorKind(t, rec, http.StatusBadGateway, domain.KindDownstreamUnavailable)
}

func TestNotifications(t *testing.T) {
	server := setupTestServer(t)
	creator := createUser(t, server, "host")
	p := createProject(t, server, creator.ID, 50)
	for i := 0; i < 2; i++ {
		u := createUser(t, server, fmt.Sprintf("guest%d", i))
		rec := do(t, server, http.MethodPost, "/api/v1/projects/"+p.ID+"/join", u.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	t.Run("requires caller", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/notifications", "", nil)
		assertErrorKind(t, rec, http.StatusUnauthorized, KindUnauthenticated)
	})

	rec := do(t, server, http.MethodGet, "/api/v1/notifications/unread_count", creator.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[UnreadCountResponse](t, rec).Unread)

	rec = do(t, server, http.MethodGet, "/api/v1/notifications?unread_only=true", creator.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[[]domain.Notification](t, rec)
	require.Len(t, inbox, 2)
	id := inbox[0].ID

	rec = do(t, server, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", id), creator.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ReadStateResponse{ID: id, IsRead: true}, decode[ReadStateResponse](t, rec))

	rec = do(t, server, http.MethodGet, "/api/v1/notifications/unread_count", creator.ID, nil)
	assert.Equal(t, 1, decode[UnreadCountResponse](t, rec).Unread)

	rec = do(t, server, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/unread", id), creator.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, server, http.MethodGet, "/api/v1/notifications/unread_count", creator.ID, nil)
	assert.Equal(t, 2, decode[UnreadCountResponse](t, rec).Unread)

	t.Run("someone else's notification", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", id), "intruder", nil)
		assertErrorKind(t, rec, http.StatusNotFound, domain.KindNotFound)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/notifications/abc/read", creator.ID, nil)
		assertErrorKind(t, rec, http.StatusBadRequest, domain.KindInvalid)
	})

	rec = do(t, server, http.MethodPost, "/api/v1/notifications/read_all", creator.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[MarkAllReadResponse](t, rec).Updated)

	rec = do(t, server, http.MethodGet, "/api/v1/notifications/unread_count", creator.ID, nil)
	assert.Equal(t, 0, decode[UnreadCountResponse](t, rec).Unread)
}
