package channel

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

// Limited wraps an Adapter with a token bucket so the chat API's rate limits
// are honoured. Waiting respects the caller's context.
type Limited struct {
	next    Adapter
	limiter *rate.Limiter
}

// NewLimited allows perSecond calls with bursts of burst.
func NewLimited(next Adapter, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *Limited) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limited: %v", domain.ErrDownstreamUnavailable, err)
	}
	return nil
}

func (l *Limited) Provision(ctx context.Context, projectID string, participantIDs []string) (Refs, error) {
	if err := l.wait(ctx); err != nil {
		return Refs{}, err
	}
	return l.next.Provision(ctx, projectID, participantIDs)
}

func (l *Limited) AddMember(ctx context.Context, roleRef, participantID string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.next.AddMember(ctx, roleRef, participantID)
}

func (l *Limited) AnnounceCompletion(ctx context.Context, channelRef string, summary ProjectSummary, participantIDs []string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.next.AnnounceCompletion(ctx, channelRef, summary, participantIDs)
}
