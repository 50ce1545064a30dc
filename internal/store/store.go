// Package store is questboard's SQLite persistence layer.
//
// Every write that must be atomic runs inside a single immediate transaction
// (the DSN sets _txlock=immediate), so concurrent joins, completions and XP
// awards serialize on the database write lock rather than racing in memory.
// JSON text columns are encoded and decoded only here.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store is the SQLite-backed persistence handle shared by all services.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for malformed-column warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Tests use it for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := cleanPath + "?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT    NOT NULL UNIQUE,
			level      INTEGER NOT NULL DEFAULT 0 CHECK (level >= 0),
			total_xp   INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS projects (
			id                   TEXT PRIMARY KEY,
			title                TEXT    NOT NULL,
			description          TEXT    NOT NULL DEFAULT '',
			difficulty           TEXT    NOT NULL,
			status               TEXT    NOT NULL DEFAULT 'open',
			creator_id           TEXT    NOT NULL REFERENCES users(id),
			max_participants     INTEGER NOT NULL CHECK (max_participants >= 2),
			current_participants INTEGER NOT NULL DEFAULT 0,
			xp_reward            INTEGER NOT NULL CHECK (xp_reward > 0),
			tags                 TEXT    NOT NULL DEFAULT '[]',
			skills               TEXT    NOT NULL DEFAULT '[]',
			channel_ref          TEXT,
			role_ref             TEXT,
			created_at           INTEGER NOT NULL,
			updated_at           INTEGER NOT NULL,
			completed_at         INTEGER,
			CHECK (current_participants <= max_participants)
		);
		CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status, created_at);
		CREATE INDEX IF NOT EXISTS idx_projects_creator ON projects(creator_id);

		CREATE TABLE IF NOT EXISTS roster (
			project_id   TEXT    NOT NULL REFERENCES projects(id),
			user_id      TEXT    NOT NULL REFERENCES users(id),
			role         TEXT    NOT NULL,
			joined_at    INTEGER NOT NULL,
			completed_at INTEGER,
			UNIQUE (project_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_roster_user ON roster(user_id);

		CREATE TABLE IF NOT EXISTS xp_transactions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT    NOT NULL REFERENCES users(id),
			amount      INTEGER NOT NULL CHECK (amount > 0),
			reason      TEXT    NOT NULL,
			project_id  TEXT,
			total_after INTEGER NOT NULL,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_xp_transactions_user ON xp_transactions(user_id, id);

		CREATE TABLE IF NOT EXISTS activity (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT,
			project_id  TEXT,
			kind        TEXT    NOT NULL,
			description TEXT    NOT NULL,
			payload     TEXT    NOT NULL DEFAULT '{}',
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activity_user ON activity(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_activity_project ON activity(project_id, created_at);

		CREATE TABLE IF NOT EXISTS notifications (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			recipient_id TEXT    NOT NULL REFERENCES users(id),
			sender_id    TEXT,
			kind         TEXT    NOT NULL,
			title        TEXT    NOT NULL,
			message      TEXT    NOT NULL,
			payload      TEXT    NOT NULL DEFAULT '{}',
			is_read      INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn in one transaction. With _txlock=immediate the write lock is
// taken at BEGIN. fn must use tx, never s.db.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}

// decodeJSON decodes a JSON text column into T. Malformed blobs are logged and
// yield fallback so one bad row never fails a whole read.
func decodeJSON[T any](s *Store, column, raw string, fallback T) T {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("malformed json column",
			zap.String("column", column),
			zap.Int("length", len(raw)),
			zap.Error(err))
		return fallback
	}
	return out
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
