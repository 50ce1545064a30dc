// Package channel defines the contract for external collaboration channels
// (a chat server with a per-project channel and role) and ships transports
// for it. Every failure is reported as domain.ErrDownstreamUnavailable.
package channel

import (
	"context"
	"time"
)

// Refs identify a provisioned channel and the role that grants access to it.
type Refs struct {
	ChannelRef string `json:"channel_ref"`
	RoleRef    string `json:"role_ref"`
}

// ProjectSummary is what gets announced when a project completes.
type ProjectSummary struct {
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Difficulty  string    `json:"difficulty"`
	XPAwarded   int64     `json:"xp_awarded"`
	CompletedAt time.Time `json:"completed_at"`
}

// Adapter is implemented by collaboration-channel integrations.
type Adapter interface {
	// Provision creates a channel and role for a project and grants them to participants.
	Provision(ctx context.Context, projectID string, participantIDs []string) (Refs, error)
	// AddMember grants roleRef to participantID.
	AddMember(ctx context.Context, roleRef, participantID string) error
	// AnnounceCompletion posts summary to channelRef.
	AnnounceCompletion(ctx context.Context, channelRef string, summary ProjectSummary, participantIDs []string) error
}

// Noop is the adapter used when no integration is configured. Provision
// returns empty refs so projects simply stay without a channel.
type Noop struct{}

func (Noop) Provision(context.Context, string, []string) (Refs, error) { return Refs{}, nil }

func (Noop) AddMember(context.Context, string, string) error { return nil }

func (Noop) AnnounceCompletion(context.Context, string, ProjectSummary, []string) error { return nil }
