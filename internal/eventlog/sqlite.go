package eventlog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLite is the durable backend. One row per session holds the materialized
// snapshot; the event log lives in a child table and is removed with the
// session via cascade.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to a session database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLite{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *SQLite) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the database to recreate)",
			ErrSchemaMismatch, version, schemaVersion)
	}

	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Create stores the initial snapshot under a freshly generated id.
func (s *SQLite) Create(ctx context.Context, userID string, snapshot Document) (string, error) {
	ctx = ensureContext(ctx)
	id := uuid.NewString()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, user_id, snapshot, revision, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
			id, userID, string(raw), now, now)
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// Get returns the current snapshot, or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, userID, sessionID string) (Document, error) {
	ctx = ensureContext(ctx)

	var raw string
	query := `SELECT snapshot FROM sessions WHERE id = ?`
	args := []any{sessionID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", sessionID, err)
	}
	return doc, nil
}

// AppendEvent merges the event's delta into the snapshot and records the
// event in the session's log, all within one transaction.
func (s *SQLite) AppendEvent(ctx context.Context, sessionID string, event Event) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return s.appendEventOnce(ctx, sessionID, event)
	})
}

func (s *SQLite) appendEventOnce(ctx context.Context, sessionID string, event Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		raw      string
		revision int64
	)
	err = tx.QueryRowContext(ctx, `SELECT snapshot, revision FROM sessions WHERE id = ?`, sessionID).Scan(&raw, &revision)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select session: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decode snapshot for %s: %w", sessionID, err)
	}

	doc = mergeDelta(doc, event.StateDelta)
	revision++
	doc["revision"] = json.RawMessage(strconv.FormatInt(revision, 10))

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	delta, err := json.Marshal(event.StateDelta)
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET snapshot = ?, revision = ?, updated_at = ? WHERE id = ?`,
		string(merged), revision, now, sessionID); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_events (session_id, author, timestamp, state_delta) VALUES (?, ?, ?, ?)`,
		sessionID, event.Author, event.Timestamp.UTC().Format(time.RFC3339Nano), string(delta)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// Delete removes the session; events go with it via cascade.
func (s *SQLite) Delete(ctx context.Context, userID, sessionID string) error {
	ctx = ensureContext(ctx)

	query := `DELETE FROM sessions WHERE id = ?`
	args := []any{sessionID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Events returns the session's event log in append order.
func (s *SQLite) Events(ctx context.Context, sessionID string) ([]Event, error) {
	ctx = ensureContext(ctx)

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT author, timestamp, state_delta FROM session_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			author string
			stamp  string
			delta  string
		)
		if err := rows.Scan(&author, &stamp, &delta); err != nil {
			return nil, err
		}
		event := Event{Author: author}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, stamp); parseErr == nil {
			event.Timestamp = parsed
		}
		if err := json.Unmarshal([]byte(delta), &event.StateDelta); err != nil {
			return nil, fmt.Errorf("decode delta: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Ping verifies the database connection is alive.
func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("session database connection unavailable")
	}
	ctx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// CountSessions reports the total number of stored sessions.
func (s *SQLite) CountSessions(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// ListIDs returns every (userID, sessionID) pair in the store. The manager
// uses this to hydrate its registry from durable state at startup.
func (s *SQLite) ListIDs(ctx context.Context) (map[string][]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, id FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := make(map[string][]string)
	for rows.Next() {
		var userID, sessionID string
		if err := rows.Scan(&userID, &sessionID); err != nil {
			return nil, err
		}
		ids[userID] = append(ids[userID], sessionID)
	}
	return ids, rows.Err()
}

// DatabaseHealth captures diagnostic details about the session database.
type DatabaseHealth struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	TableExists      bool   `json:"table_exists"`
	SessionCount     int    `json:"session_count"`
	Error            string `json:"error,omitempty"`
}

// CheckHealth returns diagnostic information about the session database.
func (s *SQLite) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("session database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat session database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("session database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("session database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping session database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sessions'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
			return health, nil
		}
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	health.TableExists = true

	if count, err := s.CountSessions(connCtx); err == nil {
		health.SessionCount = count
	} else {
		health.Error = err.Error()
	}

	return health, nil
}
