package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to ProjectStatus
		want     bool
	}{
		{StatusOpen, StatusInProgress, true},
		{StatusOpen, StatusCompleted, true},
		{StatusOpen, StatusCancelled, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusOpen, false},
		{StatusCompleted, StatusOpen, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusInProgress, false},
		{StatusCancelled, StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusOpen.Terminal())
	assert.False(t, ProjectStatus("archived").Valid())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("%w: user u1", ErrUserNotFound), KindUserNotFound},
		{fmt.Errorf("join: %w", ErrFull), KindFull},
		{fmt.Errorf("%w: project p1", ErrAlreadyCompleted), KindAlreadyCompleted},
		{ErrDownstreamUnavailable, KindDownstreamUnavailable},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}

func validProject() CreateProjectParams {
	return CreateProjectParams{
		Title:           "Build a compiler",
		Difficulty:      DifficultyIntermediate,
		CreatorID:       "u1",
		MaxParticipants: 4,
		XPReward:        150,
		Tags:            []string{" Go ", "go", "", "Compilers"},
	}
}

func TestCreateProjectParams_Validate(t *testing.T) {
	t.Run("valid normalizes lists", func(t *testing.T) {
		p := validProject()
		require.NoError(t, p.Validate())
		assert.Equal(t, []string{"go", "compilers"}, p.Tags)
		assert.Empty(t, p.Skills)
	})

	tests := []struct {
		name   string
		mutate func(*CreateProjectParams)
	}{
		{"missing title", func(p *CreateProjectParams) { p.Title = "  " }},
		{"unknown difficulty", func(p *CreateProjectParams) { p.Difficulty = "legendary" }},
		{"missing creator", func(p *CreateProjectParams) { p.CreatorID = "" }},
		{"too few participants", func(p *CreateProjectParams) { p.MaxParticipants = 1 }},
		{"too many participants", func(p *CreateProjectParams) { p.MaxParticipants = 51 }},
		{"reward below range", func(p *CreateProjectParams) { p.XPReward = 49 }},
		{"reward above range", func(p *CreateProjectParams) { p.XPReward = 251 }},
		{"zero reward", func(p *CreateProjectParams) { p.XPReward = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProject()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestRewardRangeFor(t *testing.T) {
	r, ok := RewardRangeFor(DifficultyAdvanced)
	require.True(t, ok)
	assert.Equal(t, RewardRange{Min: 100, Max: 500}, r)
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(500))
	assert.False(t, r.Contains(501))

	_, ok = RewardRangeFor("legendary")
	assert.False(t, ok)
}

func TestCreateUserParams_Validate(t *testing.T) {
	p := CreateUserParams{Username: " alice "}
	require.NoError(t, p.Validate())
	assert.Equal(t, "alice", p.Username)

	bad := CreateUserParams{Username: "a"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalid)
}
