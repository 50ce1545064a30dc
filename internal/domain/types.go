// Package domain holds questboard's entities, the project status table,
// and the error taxonomy shared by every service.
package domain

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	StatusOpen       ProjectStatus = "open"
	StatusInProgress ProjectStatus = "in_progress"
	StatusCompleted  ProjectStatus = "completed"
	StatusCancelled  ProjectStatus = "cancelled"
)

var transitions = map[ProjectStatus][]ProjectStatus{
	StatusOpen:       {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ProjectStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether s -> next is allowed. Transitions only move forward.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Difficulty grades a project and bounds its XP reward.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Role is a roster member's role within a project.
type Role string

const (
	RoleCreator      Role = "creator"
	RoleCollaborator Role = "collaborator"
)

// Payload is the structured, JSON-encodable body attached to activity entries
// and notifications.
type Payload map[string]any

// User is a participant who accrues XP.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Level     int       `json:"level"`
	TotalXP   int64     `json:"total_xp"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a team effort that awards XP on completion.
type Project struct {
	ID                  string        `json:"id"`
	Title               string        `json:"title"`
	Description         string        `json:"description,omitempty"`
	Difficulty          Difficulty    `json:"difficulty"`
	Status              ProjectStatus `json:"status"`
	CreatorID           string        `json:"creator_id"`
	MaxParticipants     int           `json:"max_participants"`
	CurrentParticipants int           `json:"current_participants"`
	XPReward            int64         `json:"xp_reward"`
	Tags                []string      `json:"tags"`
	Skills              []string      `json:"skills"`
	ChannelRef          string        `json:"channel_ref,omitempty"`
	RoleRef             string        `json:"role_ref,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
}

// HasChannel reports whether a collaboration channel has been provisioned.
func (p *Project) HasChannel() bool {
	return p.ChannelRef != ""
}

// RosterEntry records a user's membership in a project.
type RosterEntry struct {
	ProjectID   string     `json:"project_id"`
	UserID      string     `json:"user_id"`
	Role        Role       `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ActivityKind classifies activity log entries.
type ActivityKind string

const (
	ActivityProjectCreated     ActivityKind = "project_created"
	ActivityProjectJoined      ActivityKind = "project_joined"
	ActivityProjectStarted     ActivityKind = "project_started"
	ActivityProjectCancelled   ActivityKind = "project_cancelled"
	ActivityProjectCompleted   ActivityKind = "project_completed"
	ActivityLevelUp            ActivityKind = "level_up"
	ActivityChannelProvisioned ActivityKind = "channel_provisioned"
)

// ActivityEntry is an immutable record of something that happened.
type ActivityEntry struct {
	ID          int64        `json:"id"`
	UserID      string       `json:"user_id,omitempty"`
	ProjectID   string       `json:"project_id,omitempty"`
	Kind        ActivityKind `json:"kind"`
	Description string       `json:"description"`
	Payload     Payload      `json:"payload"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NotificationKind classifies inbox entries.
type NotificationKind string

const (
	NotifyProjectJoined    NotificationKind = "project_joined"
	NotifyProjectCompleted NotificationKind = "project_completed"
	NotifyProjectCancelled NotificationKind = "project_cancelled"
	NotifyLevelUp          NotificationKind = "level_up"
)

// Notification is one inbox entry. Only IsRead ever changes.
type Notification struct {
	ID          int64            `json:"id"`
	RecipientID string           `json:"recipient_id"`
	SenderID    string           `json:"sender_id,omitempty"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Payload     Payload          `json:"payload"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// XPTransaction is the audit row written for every successful award.
type XPTransaction struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	ProjectID  string    `json:"project_id,omitempty"`
	TotalAfter int64     `json:"total_after"`
	CreatedAt  time.Time `json:"created_at"`
}

// LeaderboardEntry ranks a user by total XP.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Level    int    `json:"level"`
	TotalXP  int64  `json:"total_xp"`
}
