package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

// InsertActivity appends an activity entry after checking that the referenced
// user and project exist. ID and CreatedAt are filled in on e.
func (s *Store) InsertActivity(ctx context.Context, e *domain.ActivityEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if e.UserID != "" {
			if err := userExists(ctx, tx, e.UserID); err != nil {
				return err
			}
		}
		if e.ProjectID != "" {
			if err := projectExists(ctx, tx, e.ProjectID); err != nil {
				return err
			}
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.now()
		}
		return insertActivity(ctx, tx, e)
	})
}

func insertActivity(ctx context.Context, q queryer, e *domain.ActivityEntry) error {
	if e.Payload == nil {
		e.Payload = domain.Payload{}
	}
	payload, err := encodeJSON(e.Payload)
	if err != nil {
		return err
	}
	e.CreatedAt = fromMillis(toMillis(e.CreatedAt))
	res, err := q.ExecContext(ctx, `
		INSERT INTO activity (user_id, project_id, kind, description, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullString(e.UserID), nullString(e.ProjectID), string(e.Kind), e.Description, payload,
		toMillis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("activity id: %w", err)
	}
	return nil
}

func projectExists(ctx context.Context, q queryer, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: project %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	return nil
}

// ActivityForUser returns a user's entries newest first, ties by id descending.
func (s *Store) ActivityForUser(ctx context.Context, userID string, limit int) ([]domain.ActivityEntry, error) {
	if err := userExists(ctx, s.db, userID); err != nil {
		return nil, err
	}
	return s.listActivity(ctx, "user_id", userID, limit)
}

// ActivityForProject returns a project's entries newest first, ties by id descending.
func (s *Store) ActivityForProject(ctx context.Context, projectID string, limit int) ([]domain.ActivityEntry, error) {
	if err := projectExists(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	return s.listActivity(ctx, "project_id", projectID, limit)
}

func (s *Store) listActivity(ctx context.Context, column, id string, limit int) ([]domain.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, project_id, kind, description, payload, created_at
		FROM activity WHERE `+column+` = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, id, clampLimit(limit, 50, 500))
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityEntry
	for rows.Next() {
		var (
			e                 domain.ActivityEntry
			userID, projectID sql.NullString
			kind, payload     string
			createdAt         int64
		)
		if err := rows.Scan(&e.ID, &userID, &projectID, &kind, &e.Description, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.UserID = userID.String
		e.ProjectID = projectID.String
		e.Kind = domain.ActivityKind(kind)
		e.Payload = decodeJSON(s, "activity.payload", payload, domain.Payload{})
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
