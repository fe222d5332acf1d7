package notes

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps notes in an embedded SQLite database, one row per day.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the notes database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create notes db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS notes (
			date_key TEXT PRIMARY KEY,
			text TEXT NOT NULL DEFAULT '',
			important INTEGER NOT NULL DEFAULT 0,
			updated_at_ms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init notes schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads every row. Rows with malformed keys fail the load.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date_key, text, important FROM notes`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]Note)
	for rows.Next() {
		var (
			key       string
			n         Note
			important int
		)
		if err := rows.Scan(&key, &n.Text, &important); err != nil {
			return Snapshot{}, fmt.Errorf("scan note: %w", err)
		}
		n.Important = important != 0
		raw[key] = n
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate notes: %w", err)
	}
	return NewSnapshot(raw)
}

// Save replaces the stored collection with s in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notes tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("clear notes: %w", err)
	}
	nowMS := time.Now().UnixMilli()
	for _, n := range snap.Sorted() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notes (date_key, text, important, updated_at_ms) VALUES (?, ?, ?, ?)`,
			n.Key(), n.Text, boolToInt(n.Important), nowMS,
		); err != nil {
			return fmt.Errorf("insert note %s: %w", n.Key(), err)
		}
	}
	return tx.Commit()
}

// Upsert writes a single day without rewriting the table.
func (s *SQLiteStore) Upsert(ctx context.Context, n Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (date_key, text, important, updated_at_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT(date_key) DO UPDATE SET
			text = excluded.text,
			important = excluded.important,
			updated_at_ms = excluded.updated_at_ms`,
		n.Key(), n.Text, boolToInt(n.Important), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert note %s: %w", n.Key(), err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
