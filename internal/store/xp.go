package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/leveling"
)

// Award is the outcome of AwardXP.
type Award struct {
	UserID   string
	OldLevel int
	NewLevel int
	TotalXP  int64
	// LevelUp is the activity row written when the award crossed a level.
	LevelUp *domain.ActivityEntry
}

// AwardXP adds amount to a user's total and rewrites the level in one
// transaction. The increment happens in SQL, and the stored level only ever
// rises. At most one level_up activity row is written per award.
func (s *Store) AwardXP(ctx context.Context, userID string, amount int64, reason, projectID string) (*Award, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	var award *Award
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var oldLevel int
		err := tx.QueryRowContext(ctx, `SELECT level FROM users WHERE id = ?`, userID).Scan(&oldLevel)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		if err != nil {
			return fmt.Errorf("load user level: %w", err)
		}

		var total int64
		if err := tx.QueryRowContext(ctx,
			`UPDATE users SET total_xp = total_xp + ? WHERE id = ? RETURNING total_xp`,
			amount, userID).Scan(&total); err != nil {
			return fmt.Errorf("increment xp: %w", err)
		}
		var newLevel int
		if err := tx.QueryRowContext(ctx,
			`UPDATE users SET level = MAX(level, ?) WHERE id = ? RETURNING level`,
			leveling.LevelOf(total), userID).Scan(&newLevel); err != nil {
			return fmt.Errorf("update level: %w", err)
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO xp_transactions (user_id, amount, reason, project_id, total_after, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			userID, amount, reason, nullString(projectID), total, toMillis(now)); err != nil {
			return fmt.Errorf("insert xp transaction: %w", err)
		}

		award = &Award{UserID: userID, OldLevel: oldLevel, NewLevel: newLevel, TotalXP: total}
		if newLevel > oldLevel {
			payload := domain.Payload{
				"old_level": oldLevel,
				"new_level": newLevel,
				"total_xp":  total,
				"amount":    amount,
				"reason":    reason,
			}
			if projectID != "" {
				payload["project_id"] = projectID
			}
			entry := &domain.ActivityEntry{
				UserID:      userID,
				ProjectID:   projectID,
				Kind:        domain.ActivityLevelUp,
				Description: fmt.Sprintf("Reached level %d", newLevel),
				Payload:     payload,
				CreatedAt:   now,
			}
			if err := insertActivity(ctx, tx, entry); err != nil {
				return err
			}
			award.LevelUp = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return award, nil
}

// XPHistory returns a user's XP transactions newest first.
func (s *Store) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error) {
	if err := userExists(ctx, s.db, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, reason, project_id, total_after, created_at
		FROM xp_transactions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, clampLimit(limit, 50, 500))
	if err != nil {
		return nil, fmt.Errorf("list xp transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.XPTransaction
	for rows.Next() {
		var (
			tx        domain.XPTransaction
			projectID sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Reason, &projectID, &tx.TotalAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("scan xp transaction: %w", err)
		}
		tx.ProjectID = projectID.String
		tx.CreatedAt = fromMillis(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}
