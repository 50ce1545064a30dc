package channel

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Bridge serves the request/reply subjects by delegating to an Adapter. A
// chat integration runs one of these next to its own client; questd runs one
// against Noop when it hosts an embedded NATS server.
type Bridge struct {
	subs    []*nats.Subscription
	timeout time.Duration
	logger  *zap.Logger
}

// Serve subscribes the bridge subjects on nc in a shared queue group.
func Serve(nc *nats.Conn, impl Adapter, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{timeout: 10 * time.Second, logger: logger}

	handlers := map[string]func(ctx context.Context, data []byte) (Reply, error){
		SubjectProvision: func(ctx context.Context, data []byte) (Reply, error) {
			var req ProvisionRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return Reply{}, err
			}
			refs, err := impl.Provision(ctx, req.ProjectID, req.ParticipantIDs)
			return Reply{Refs: refs}, err
		},
		SubjectAddMember: func(ctx context.Context, data []byte) (Reply, error) {
			var req AddMemberRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return Reply{}, err
			}
			return Reply{}, impl.AddMember(ctx, req.RoleRef, req.ParticipantID)
		},
		SubjectAnnounce: func(ctx context.Context, data []byte) (Reply, error) {
			var req AnnounceRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return Reply{}, err
			}
			return Reply{}, impl.AnnounceCompletion(ctx, req.ChannelRef, req.Summary, req.ParticipantIDs)
		},
	}

	for subject, handle := range handlers {
		sub, err := nc.QueueSubscribe(subject, "questboard-channel-bridge", b.handler(subject, handle))
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.subs = append(b.subs, sub)
	}
	if err := nc.Flush(); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bridge) handler(subject string, handle func(context.Context, []byte) (Reply, error)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		reply, err := handle(ctx, msg.Data)
		if err != nil {
			b.logger.Warn("channel bridge request failed", zap.String("subject", subject), zap.Error(err))
			reply = Reply{Error: err.Error()}
		} else {
			reply.OK = true
		}
		data, err := json.Marshal(reply)
		if err != nil {
			b.logger.Error("marshal bridge reply", zap.Error(err))
			return
		}
		if err := msg.Respond(data); err != nil {
			b.logger.Warn("respond to bridge request", zap.String("subject", subject), zap.Error(err))
		}
	}
}

// Close unsubscribes every bridge subject.
func (b *Bridge) Close() error {
	var errs []error
	for _, sub := range b.subs {
		errs = append(errs, sub.Unsubscribe())
	}
	return errors.Join(errs...)
}
