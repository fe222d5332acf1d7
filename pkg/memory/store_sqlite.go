package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists long-term conversation logs per session.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention between sessions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_key TEXT PRIMARY KEY,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			record_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			session_key TEXT NOT NULL,
			seq INTEGER NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS records_session_seq_idx ON records(session_key, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init memory schema: %w", err)
		}
	}
	return nil
}

// AppendRecord stores rec at the end of the session's log.
func (s *SQLiteStore) AppendRecord(ctx context.Context, sessionKey string, rec Record) error {
	if rec.ID == "" {
		rec.ID = "qa-" + uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	nowMS := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin memory tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (session_key, created_at_ms, updated_at_ms, record_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(session_key) DO UPDATE SET
			updated_at_ms = excluded.updated_at_ms,
			record_count = sessions.record_count + 1`,
		sessionKey, nowMS, nowMS,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE session_key = ?`, sessionKey,
	).Scan(&seq); err != nil {
		return fmt.Errorf("next record seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (id, session_key, seq, question, answer, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, sessionKey, seq, rec.Question, rec.Answer, rec.Timestamp.UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return tx.Commit()
}

// ListRecords returns the session's log in append order. limit <= 0 returns
// everything; otherwise the newest limit records.
func (s *SQLiteStore) ListRecords(ctx context.Context, sessionKey string, limit int) ([]Record, error) {
	query := `SELECT id, question, answer, created_at_ms FROM (
		SELECT id, question, answer, created_at_ms, seq FROM records
		WHERE session_key = ? ORDER BY seq DESC`
	args := []any{sessionKey}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `) ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			ms  int64
		)
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &ms); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ms)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Load restores the full memory of a session.
func (s *SQLiteStore) Load(ctx context.Context, sessionKey string, opts ...Option) (*Memory, error) {
	records, err := s.ListRecords(ctx, sessionKey, 0)
	if err != nil {
		return nil, err
	}
	return Restore(records, opts...), nil
}

// CountSessions reports how many sessions have history.
func (s *SQLiteStore) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}
