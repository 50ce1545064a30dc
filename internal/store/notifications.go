package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

// InsertNotification validates the recipient (and sender, when set) and
// appends the notification unread. ID and CreatedAt are filled in on n.
func (s *Store) InsertNotification(ctx context.Context, n *domain.Notification) error {
	if n.Payload == nil {
		n.Payload = domain.Payload{}
	}
	payload, err := encodeJSON(n.Payload)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := userExists(ctx, tx, n.RecipientID); err != nil {
			return err
		}
		if n.SenderID != "" {
			if err := userExists(ctx, tx, n.SenderID); err != nil {
				return err
			}
		}
		n.IsRead = false
		n.CreatedAt = fromMillis(toMillis(s.now()))
		res, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (recipient_id, sender_id, kind, title, message, payload, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
			n.RecipientID, nullString(n.SenderID), string(n.Kind), n.Title, n.Message, payload,
			toMillis(n.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		n.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("notification id: %w", err)
		}
		return nil
	})
}

// ListNotifications returns a user's inbox newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `
		SELECT id, recipient_id, sender_id, kind, title, message, payload, is_read, created_at
		FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, clampLimit(limit, 50, 500))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n             domain.Notification
			senderID      sql.NullString
			kind, payload string
			createdAt     int64
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &senderID, &kind, &n.Title, &n.Message,
			&payload, &n.IsRead, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.SenderID = senderID.String
		n.Kind = domain.NotificationKind(kind)
		n.Payload = decodeJSON(s, "notifications.payload", payload, domain.Payload{})
		n.CreatedAt = fromMillis(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns the number of unread notifications for a user.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// SetNotificationRead toggles the read flag. Notifications owned by another
// user are reported as not found.
func (s *Store) SetNotificationRead(ctx context.Context, userID string, id int64, read bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ? WHERE id = ? AND recipient_id = ?`, read, id, userID)
	if err != nil {
		return fmt.Errorf("set read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: notification %d", domain.ErrNotFound, id)
	}
	return nil
}

// MarkAllRead marks every unread notification of a user as read and returns how many changed.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return res.RowsAffected()
}
