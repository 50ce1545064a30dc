package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	qbhttp "github.com/fyrsmithlabs/questboard/internal/http"
	"github.com/fyrsmithlabs/questboard/internal/leveling"
	"github.com/fyrsmithlabs/questboard/internal/services"
	"github.com/fyrsmithlabs/questboard/internal/store"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "questctl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv, err := qbhttp.NewServer(services.Wire(services.WireOptions{Store: st}), zap.NewNop(), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

// execute runs questctl with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestClient(t *testing.T) {
	ts := startTestServer(t)
	ctx := context.Background()
	c := newClient(ts.URL+"/", "", 5*time.Second)

	var u domain.User
	require.NoError(t, c.post(ctx, "/api/v1/users", qbhttp.CreateUserRequest{Username: "dana"}, &u))
	assert.Equal(t, "dana", u.Username)

	t.Run("decodes error bodies", func(t *testing.T) {
		err := c.get(ctx, "/api/v1/projects/missing", nil)
		require.Error(t, err)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, domain.KindNotFound, apiErr.Kind)
	})

	t.Run("reports missing caller", func(t *testing.T) {
		err := c.post(ctx, "/api/v1/projects", qbhttp.CreateProjectRequest{Title: "x"}, nil)
		assert.Equal(t, qbhttp.KindUnauthenticated, errorKind(err))
	})

	t.Run("non-JSON errors", func(t *testing.T) {
		plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		defer plain.Close()

		err := newClient(plain.URL, "", time.Second).get(ctx, "/", nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Empty(t, apiErr.Kind)
		assert.Contains(t, apiErr.Error(), "bad gateway")
	})
}

func TestLevelsOffline(t *testing.T) {
	out, err := execute(t, "levels", "--max", "3", "--server", "http://127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "THRESHOLD")
	for _, row := range leveling.Table(3) {
		assert.Contains(t, out, fmt.Sprint(row.Threshold))
	}
}

func TestProjectWorkflow(t *testing.T) {
	ts := startTestServer(t)
	ctx := context.Background()
	c := newClient(ts.URL, "", 5*time.Second)

	var creator, member domain.User
	require.NoError(t, c.post(ctx, "/api/v1/users", qbhttp.CreateUserRequest{Username: "lead"}, &creator))
	require.NoError(t, c.post(ctx, "/api/v1/users", qbhttp.CreateUserRequest{Username: "helper"}, &member))

	out, err := execute(t, "--server", ts.URL, "--user", creator.ID,
		"project", "create", "--title", "Ship docs", "--difficulty", "beginner", "--xp", "60", "--max", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Ship docs")

	var projects []*domain.Project
	require.NoError(t, c.get(ctx, "/api/v1/projects", &projects))
	require.Len(t, projects, 1)
	projectID := projects[0].ID

	_, err = execute(t, "--server", ts.URL, "--user", member.ID, "project", "join", projectID)
	require.NoError(t, err)

	_, err = execute(t, "--server", ts.URL, "--user", member.ID, "project", "join", projectID)
	require.Error(t, err)
	assert.Equal(t, domain.KindAlreadyMember, errorKind(err))

	out, err = execute(t, "--server", ts.URL, "--user", creator.ID, "project", "complete", projectID)
	require.NoError(t, err)
	assert.Contains(t, out, "Project completed")
	assert.Contains(t, out, member.ID)

	out, err = execute(t, "--server", ts.URL, "--user", creator.ID, "inbox")
	require.NoError(t, err)
	assert.Contains(t, out, string(domain.NotifyProjectJoined))
	assert.Contains(t, out, string(domain.NotifyProjectCompleted))

	out, err = execute(t, "--server", ts.URL, "leaderboard", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "lead")
	assert.Contains(t, out, "helper")
}
