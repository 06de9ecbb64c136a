package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	progressMu sync.Mutex // Serializes progress writes to prevent SQLITE_BUSY
	retry      shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy()}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		teacher_mode INTEGER NOT NULL DEFAULT 0,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS progress (
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		slug TEXT NOT NULL,
		html TEXT NOT NULL,
		css TEXT NOT NULL,
		completed_json TEXT NOT NULL DEFAULT '[]',
		manual_json TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, kind, slug)
	);
	CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, teacher_mode, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &user.TeacherMode, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record. The teacher mode flag is only
// changed through SetTeacherMode.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, teacher_mode, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, user.TeacherMode,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// SetTeacherMode toggles the instructor override flag for a user.
func (s *SQLiteStore) SetTeacherMode(ctx context.Context, userID string, enabled bool) error {
	query := `UPDATE users SET teacher_mode = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, enabled, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update teacher_mode: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

const progressColumns = `user_id, kind, slug, html, css, completed_json, manual_json, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*domain.Progress, error) {
	var p domain.Progress
	var kind, completedJSON, manualJSON string
	var updatedAt int64

	if err := row.Scan(&p.UserID, &kind, &p.Slug, &p.HTML, &p.CSS, &completedJSON, &manualJSON, &updatedAt); err != nil {
		return nil, err
	}
	p.Kind = domain.ContentKind(kind)
	p.UpdatedAt = time.UnixMilli(updatedAt)

	if err := json.Unmarshal([]byte(completedJSON), &p.Completed); err != nil {
		return nil, fmt.Errorf("decode completed challenges: %w", err)
	}
	if err := json.Unmarshal([]byte(manualJSON), &p.Manual); err != nil {
		return nil, fmt.Errorf("decode manual challenges: %w", err)
	}
	return &p, nil
}

// GetProgress retrieves saved playground state for one lesson or project.
func (s *SQLiteStore) GetProgress(ctx context.Context, userID string, kind domain.ContentKind, slug string) (*domain.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = ? AND kind = ? AND slug = ?`
	p, err := scanProgress(s.db.QueryRowContext(ctx, query, userID, string(kind), slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress row: %w", err)
	}
	return p, nil
}

// ListProgress retrieves all saved state of a user for one content kind.
func (s *SQLiteStore) ListProgress(ctx context.Context, userID string, kind domain.ContentKind) ([]*domain.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = ? AND kind = ? ORDER BY slug`
	rows, err := s.db.QueryContext(ctx, query, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close progress rows", "error", closeErr)
		}
	}()

	var out []*domain.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

// SaveProgress creates or replaces saved playground state.
// Retries with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) SaveProgress(ctx context.Context, p *domain.Progress) error {
	completed, err := json.Marshal(nonNil(p.Completed))
	if err != nil {
		return fmt.Errorf("encode completed challenges: %w", err)
	}
	manual, err := json.Marshal(nonNil(p.Manual))
	if err != nil {
		return fmt.Errorf("encode manual challenges: %w", err)
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT INTO progress (` + progressColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, kind, slug) DO UPDATE SET
			html = excluded.html,
			css = excluded.css,
			completed_json = excluded.completed_json,
			manual_json = excluded.manual_json,
			updated_at = excluded.updated_at`

	return s.retry.Do(ctx, "save progress", func() error {
		s.progressMu.Lock()
		defer s.progressMu.Unlock()

		_, err := s.db.ExecContext(ctx, query,
			p.UserID, string(p.Kind), p.Slug, p.HTML, p.CSS,
			string(completed), string(manual), updatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}
		return nil
	})
}

// DeleteProgress removes saved playground state.
func (s *SQLiteStore) DeleteProgress(ctx context.Context, userID string, kind domain.ContentKind, slug string) error {
	return s.retry.Do(ctx, "delete progress", func() error {
		s.progressMu.Lock()
		defer s.progressMu.Unlock()

		_, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE user_id = ? AND kind = ? AND slug = ?`, userID, string(kind), slug)
		if err != nil {
			return fmt.Errorf("delete progress: %w", err)
		}
		return nil
	})
}

// DeleteInactiveUsers removes users not seen within ttl together with their progress.
func (s *SQLiteStore) DeleteInactiveUsers(ctx context.Context, ttl time.Duration) (int64, int64, error) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	threshold := time.Now().Add(-ttl).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin retention tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to rollback retention tx", "error", rbErr)
		}
	}()

	progRes, err := tx.ExecContext(ctx,
		`DELETE FROM progress WHERE user_id IN (SELECT user_id FROM users WHERE last_seen_at < ?)`, threshold)
	if err != nil {
		return 0, 0, fmt.Errorf("delete inactive progress: %w", err)
	}
	progRows, err := progRes.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("inactive progress rows affected: %w", err)
	}

	userRes, err := tx.ExecContext(ctx, `DELETE FROM users WHERE last_seen_at < ?`, threshold)
	if err != nil {
		return 0, 0, fmt.Errorf("delete inactive users: %w", err)
	}
	userRows, err := userRes.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("inactive user rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit retention tx: %w", err)
	}
	return userRows, progRows, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
