// Package project implements the project state machine.
//
// Lifecycle:
//
//	open -> in_progress -> completed
//	open | in_progress -> cancelled
//
// completed and cancelled are terminal. Completion itself is driven by the
// completion package because it fans out XP awards; this package owns
// creation, joining, starting, cancelling and channel provisioning.
//
// Invariants enforced at the storage layer:
//   - current_participants equals the roster size and never exceeds max_participants
//   - a user appears at most once in a roster
//   - only the creator may start, cancel, complete or provision a channel
//
// Side effects that follow a committed change (activity, notifications,
// channel membership) are best-effort: they are logged on failure and never
// undo the change.
package project
