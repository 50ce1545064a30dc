package domain

import "errors"

// Error taxonomy. Callers wrap these with context via fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidState          = errors.New("invalid state")
	ErrForbidden             = errors.New("forbidden")
	ErrFull                  = errors.New("project is full")
	ErrAlreadyMember         = errors.New("already a member")
	ErrAlreadyCompleted      = errors.New("project already completed")
	ErrInvalidAmount         = errors.New("invalid xp amount")
	ErrInvalid               = errors.New("invalid input")
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
)

// Wire names for the error kinds.
const (
	KindNotFound              = "NotFound"
	KindUserNotFound          = "UserNotFound"
	KindInvalidState          = "InvalidState"
	KindForbidden             = "Forbidden"
	KindFull                  = "Full"
	KindAlreadyMember         = "AlreadyMember"
	KindAlreadyCompleted      = "AlreadyCompleted"
	KindInvalidAmount         = "InvalidAmount"
	KindInvalid               = "Invalid"
	KindDownstreamUnavailable = "DownstreamUnavailable"
	KindInternal              = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	// UserNotFound is checked before NotFound so a wrapped user error keeps its kind.
	{ErrUserNotFound, KindUserNotFound},
	{ErrNotFound, KindNotFound},
	{ErrInvalidState, KindInvalidState},
	{ErrForbidden, KindForbidden},
	{ErrFull, KindFull},
	{ErrAlreadyMember, KindAlreadyMember},
	{ErrAlreadyCompleted, KindAlreadyCompleted},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInvalid, KindInvalid},
	{ErrDownstreamUnavailable, KindDownstreamUnavailable},
}

// KindOf returns the wire kind of err, or KindInternal for unclassified errors.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
