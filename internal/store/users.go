package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

// CreateUser inserts a user with zero XP at level 0.
func (s *Store) CreateUser(ctx context.Context, id, username string) (*domain.User, error) {
	u := &domain.User{ID: id, Username: username, CreatedAt: fromMillis(toMillis(s.now()))}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, level, total_xp, created_at) VALUES (?, ?, 0, 0, ?)`,
		u.ID, u.Username, toMillis(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q is taken", domain.ErrInvalid, username)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q queryer, id string) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, username, level, total_xp, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Level, &u.TotalXP, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

func userExists(ctx context.Context, q queryer, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	return nil
}

// Leaderboard returns users ordered by total XP descending, ties by id.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit = clampLimit(limit, 10, 100)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, level, total_xp FROM users ORDER BY total_xp DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		e := domain.LeaderboardEntry{Rank: len(out) + 1}
		if err := rows.Scan(&e.UserID, &e.Username, &e.Level, &e.TotalXP); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
