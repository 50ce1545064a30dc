package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

// Request/reply subjects served by the chat bridge.
const (
	SubjectProvision = "questboard.channel.provision"
	SubjectAddMember = "questboard.channel.add_member"
	SubjectAnnounce  = "questboard.channel.announce"
)

// ProvisionRequest is the body sent on SubjectProvision.
type ProvisionRequest struct {
	ProjectID      string   `json:"project_id"`
	ParticipantIDs []string `json:"participant_ids"`
}

// AddMemberRequest is the body sent on SubjectAddMember.
type AddMemberRequest struct {
	RoleRef       string `json:"role_ref"`
	ParticipantID string `json:"participant_id"`
}

// AnnounceRequest is the body sent on SubjectAnnounce.
type AnnounceRequest struct {
	ChannelRef     string         `json:"channel_ref"`
	Summary        ProjectSummary `json:"summary"`
	ParticipantIDs []string       `json:"participant_ids"`
}

// Reply is the body every bridge reply carries.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Refs
}

// NATSAdapter talks to a chat bridge over NATS request/reply.
type NATSAdapter struct {
	nc      *nats.Conn
	timeout time.Duration
	logger  *zap.Logger
}

// NewNATSAdapter creates an adapter on nc. timeout bounds each request when
// the caller's context has no earlier deadline.
func NewNATSAdapter(nc *nats.Conn, timeout time.Duration, logger *zap.Logger) *NATSAdapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSAdapter{nc: nc, timeout: timeout, logger: logger}
}

func (a *NATSAdapter) Provision(ctx context.Context, projectID string, participantIDs []string) (Refs, error) {
	reply, err := a.request(ctx, SubjectProvision, ProvisionRequest{ProjectID: projectID, ParticipantIDs: participantIDs})
	if err != nil {
		return Refs{}, err
	}
	if reply.ChannelRef == "" {
		return Refs{}, fmt.Errorf("%w: provision returned no channel", domain.ErrDownstreamUnavailable)
	}
	return reply.Refs, nil
}

func (a *NATSAdapter) AddMember(ctx context.Context, roleRef, participantID string) error {
	_, err := a.request(ctx, SubjectAddMember, AddMemberRequest{RoleRef: roleRef, ParticipantID: participantID})
	return err
}

func (a *NATSAdapter) AnnounceCompletion(ctx context.Context, channelRef string, summary ProjectSummary, participantIDs []string) error {
	_, err := a.request(ctx, SubjectAnnounce, AnnounceRequest{
		ChannelRef:     channelRef,
		Summary:        summary,
		ParticipantIDs: participantIDs,
	})
	return err
}

func (a *NATSAdapter) request(ctx context.Context, subject string, body any) (*Reply, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", subject, err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msg, err := a.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		a.logger.Warn("channel request failed", zap.String("subject", subject), zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDownstreamUnavailable, subject, err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("%w: %s: malformed reply: %v", domain.ErrDownstreamUnavailable, subject, err)
	}
	if !reply.OK {
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrDownstreamUnavailable, subject, reply.Error)
	}
	return &reply, nil
}
