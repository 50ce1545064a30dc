package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

const projectColumns = `id, title, description, difficulty, status, creator_id, max_participants,
	current_participants, xp_reward, tags, skills, channel_ref, role_ref,
	created_at, updated_at, completed_at`

// CreateProject inserts an open project and enrolls its creator in one transaction.
func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	tags, err := encodeJSON(nonNil(p.Tags))
	if err != nil {
		return err
	}
	skills, err := encodeJSON(nonNil(p.Skills))
	if err != nil {
		return err
	}
	now := fromMillis(toMillis(s.now()))
	p.Status = domain.StatusOpen
	p.CurrentParticipants = 1
	p.CreatedAt, p.UpdatedAt = now, now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := userExists(ctx, tx, p.CreatorID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, title, description, difficulty, status, creator_id,
				max_participants, current_participants, xp_reward, tags, skills, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Title, p.Description, string(p.Difficulty), string(p.Status), p.CreatorID,
			p.MaxParticipants, p.CurrentParticipants, p.XPReward, tags, skills,
			toMillis(now), toMillis(now))
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO roster (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
			p.ID, p.CreatorID, string(domain.RoleCreator), toMillis(now))
		if err != nil {
			return fmt.Errorf("insert creator roster entry: %w", err)
		}
		return nil
	})
}

// GetProject loads a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return s.getProject(ctx, s.db, id)
}

func (s *Store) getProject(ctx context.Context, q queryer, id string) (*domain.Project, error) {
	row := q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := s.scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListFilter narrows ListProjects.
type ListFilter struct {
	Status    domain.ProjectStatus
	CreatorID string
	MemberID  string
	Limit     int
}

// ListProjects returns projects newest first.
func (s *Store) ListProjects(ctx context.Context, f ListFilter) ([]*domain.Project, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CreatorID != "" {
		where = append(where, "creator_id = ?")
		args = append(args, f.CreatorID)
	}
	if f.MemberID != "" {
		where = append(where, "id IN (SELECT project_id FROM roster WHERE user_id = ?)")
		args = append(args, f.MemberID)
	}
	query := `SELECT ` + projectColumns + ` FROM projects`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit, 50, 200))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := s.scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Roster returns the roster of a project in join order.
func (s *Store) Roster(ctx context.Context, projectID string) ([]domain.RosterEntry, error) {
	if _, err := s.getProject(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	return roster(ctx, s.db, projectID)
}

func roster(ctx context.Context, q queryer, projectID string) ([]domain.RosterEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT project_id, user_id, role, joined_at, completed_at
		FROM roster WHERE project_id = ? ORDER BY joined_at ASC, rowid ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var out []domain.RosterEntry
	for rows.Next() {
		var (
			e           domain.RosterEntry
			role        string
			joinedAt    int64
			completedAt sql.NullInt64
		)
		if err := rows.Scan(&e.ProjectID, &e.UserID, &role, &joinedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		e.Role = domain.Role(role)
		e.JoinedAt = fromMillis(joinedAt)
		e.CompletedAt = nullMillis(completedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func participantIDs(entries []domain.RosterEntry) []string {
	ids := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		ids = append(ids, e.UserID)
	}
	return ids
}

// JoinProject enrolls userID as a collaborator. Checks run in order: project
// exists, user exists, project is open, not already a member, capacity left.
// The capacity check is a conditional UPDATE so it cannot be raced.
func (s *Store) JoinProject(ctx context.Context, projectID, userID string) (*domain.RosterEntry, *domain.Project, error) {
	var (
		entry   *domain.RosterEntry
		project *domain.Project
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		if p.Status != domain.StatusOpen {
			return fmt.Errorf("%w: project %s is %s", domain.ErrInvalidState, projectID, p.Status)
		}
		var one int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM roster WHERE project_id = ? AND user_id = ?`, projectID, userID).Scan(&one)
		switch {
		case err == nil:
			return fmt.Errorf("%w: user %s in project %s", domain.ErrAlreadyMember, userID, projectID)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check membership: %w", err)
		}

		now := s.now()
		res, err := tx.ExecContext(ctx, `
			UPDATE projects SET current_participants = current_participants + 1, updated_at = ?
			WHERE id = ? AND status = 'open' AND current_participants < max_participants`,
			toMillis(now), projectID)
		if err != nil {
			return fmt.Errorf("increment participants: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: project %s has %d/%d participants",
				domain.ErrFull, projectID, p.CurrentParticipants, p.MaxParticipants)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO roster (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
			projectID, userID, string(domain.RoleCollaborator), toMillis(now))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: user %s in project %s", domain.ErrAlreadyMember, userID, projectID)
			}
			return fmt.Errorf("insert roster entry: %w", err)
		}

		entry = &domain.RosterEntry{
			ProjectID: projectID,
			UserID:    userID,
			Role:      domain.RoleCollaborator,
			JoinedAt:  fromMillis(toMillis(now)),
		}
		project, err = s.getProject(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, project, nil
}

// TransitionProject moves a non-terminal project to status `to` on behalf of
// its creator. It returns the updated project and its roster.
func (s *Store) TransitionProject(ctx context.Context, projectID, byUserID string, to domain.ProjectStatus) (*domain.Project, []domain.RosterEntry, error) {
	if to == domain.StatusCompleted {
		return nil, nil, fmt.Errorf("%w: use CompleteProject", domain.ErrInvalidState)
	}
	var (
		project *domain.Project
		members []domain.RosterEntry
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if p.CreatorID != byUserID {
			return fmt.Errorf("%w: only the creator may change project %s", domain.ErrForbidden, projectID)
		}
		if !p.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: project %s cannot move from %s to %s",
				domain.ErrInvalidState, projectID, p.Status, to)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), toMillis(s.now()), projectID, string(p.Status))
		if err != nil {
			return fmt.Errorf("update project status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: project %s changed concurrently", domain.ErrInvalidState, projectID)
		}
		if project, err = s.getProject(ctx, tx, projectID); err != nil {
			return err
		}
		members, err = roster(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return project, members, nil
}

// CompleteProject is the durable half of completion: it authorizes the caller,
// flips the project to completed exactly once, stamps every roster row and
// returns the distinct participant ids. A second call gets ErrAlreadyCompleted.
func (s *Store) CompleteProject(ctx context.Context, projectID, byUserID string) (*domain.Project, []string, error) {
	var (
		project      *domain.Project
		participants []string
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if p.CreatorID != byUserID {
			return fmt.Errorf("%w: only the creator may complete project %s", domain.ErrForbidden, projectID)
		}
		switch p.Status {
		case domain.StatusCompleted:
			return fmt.Errorf("%w: %s", domain.ErrAlreadyCompleted, projectID)
		case domain.StatusCancelled:
			return fmt.Errorf("%w: project %s is cancelled", domain.ErrInvalidState, projectID)
		}

		now := toMillis(s.now())
		res, err := tx.ExecContext(ctx, `
			UPDATE projects SET status = 'completed', completed_at = ?, updated_at = ?
			WHERE id = ? AND status IN ('open', 'in_progress')`, now, now, projectID)
		if err != nil {
			return fmt.Errorf("complete project: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyCompleted, projectID)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE roster SET completed_at = ? WHERE project_id = ?`, now, projectID); err != nil {
			return fmt.Errorf("stamp roster: %w", err)
		}
		members, err := roster(ctx, tx, projectID)
		if err != nil {
			return err
		}
		participants = participantIDs(members)
		project, err = s.getProject(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return project, participants, nil
}

// SetChannelRefs records the provisioned collaboration channel of a project.
// The write only lands on a non-terminal project without a channel; otherwise
// it returns ErrInvalidState and nothing changes.
func (s *Store) SetChannelRefs(ctx context.Context, projectID, channelRef, roleRef string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE projects SET channel_ref = ?, role_ref = ?, updated_at = ?
			WHERE id = ? AND channel_ref IS NULL AND status IN (?, ?)`,
			nullString(channelRef), nullString(roleRef), toMillis(s.now()), projectID,
			string(domain.StatusOpen), string(domain.StatusInProgress))
		if err != nil {
			return fmt.Errorf("set channel refs: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("set channel refs: %w", err)
		} else if n == 1 {
			return nil
		}
		if err := projectExists(ctx, tx, projectID); err != nil {
			return err
		}
		return fmt.Errorf("%w: project %s is closed or already has a channel", domain.ErrInvalidState, projectID)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p                    domain.Project
		difficulty, status   string
		tags, skills         string
		channelRef, roleRef  sql.NullString
		createdAt, updatedAt int64
		completedAt          sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &difficulty, &status, &p.CreatorID,
		&p.MaxParticipants, &p.CurrentParticipants, &p.XPReward, &tags, &skills,
		&channelRef, &roleRef, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	p.Difficulty = domain.Difficulty(difficulty)
	p.Status = domain.ProjectStatus(status)
	p.Tags = decodeJSON(s, "projects.tags", tags, []string{})
	p.Skills = decodeJSON(s, "projects.skills", skills, []string{})
	p.ChannelRef = channelRef.String
	p.RoleRef = roleRef.String
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.CompletedAt = nullMillis(completedAt)
	return &p, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
