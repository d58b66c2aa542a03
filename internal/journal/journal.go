// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal keeps an append-only SQLite history of executed backup
// uploads and downloads.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/papers/pkg/types"
)

// FileName is the journal database filename.
const FileName = "journal.db"

const defaultLimit = 50

// Event is one executed transfer outcome.
type Event struct {
	ID            int64               `json:"id" yaml:"id"`
	At            time.Time           `json:"at" yaml:"at"`
	Direction     types.SyncDirection `json:"direction" yaml:"direction"`
	Key           string              `json:"key" yaml:"key"`
	Outcome       types.SyncOutcome   `json:"outcome" yaml:"outcome"`
	AttachmentKey string              `json:"attachment_key,omitempty" yaml:"attachment_key,omitempty"`
	Detail        string              `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Query filters List. Zero values match everything.
type Query struct {
	Key       string
	Direction types.SyncDirection
	Limit     int
}

// Journal is the sync history database.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath places the journal beside the extraction cache root, so a
// root of ~/.cache/papers/extractions yields ~/.cache/papers/journal.db.
func DefaultPath(cacheRoot string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(cacheRoot)), FileName)
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	j := &Journal{db: db, now: time.Now}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return j, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sync_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			direction TEXT NOT NULL,
			item_key TEXT NOT NULL,
			outcome TEXT NOT NULL,
			attachment_key TEXT,
			detail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_events_key ON sync_events(item_key)`,
	}
	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends ev. A zero At is stamped with the current time.
func (j *Journal) Record(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = j.now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sync_events (at, direction, item_key, outcome, attachment_key, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.At.UTC().Format(time.RFC3339Nano), string(ev.Direction), ev.Key, string(ev.Outcome),
		nullable(ev.AttachmentKey), nullable(ev.Detail))
	if err != nil {
		return fmt.Errorf("recording %s %s: %w", ev.Direction, ev.Key, err)
	}
	return nil
}

// List returns matching events, newest first.
func (j *Journal) List(ctx context.Context, q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT id, at, direction, item_key, outcome, attachment_key, detail FROM sync_events WHERE 1=1`
	var args []any
	if q.Key != "" {
		query += ` AND item_key = ?`
		args = append(args, q.Key)
	}
	if q.Direction != "" {
		query += ` AND direction = ?`
		args = append(args, string(q.Direction))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev          Event
			at          string
			dir, out    string
			att, detail sql.NullString
		)
		if err := rows.Scan(&ev.ID, &at, &dir, &ev.Key, &out, &att, &detail); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		ev.At, _ = time.Parse(time.RFC3339Nano, at)
		ev.Direction = types.SyncDirection(dir)
		ev.Outcome = types.SyncOutcome(out)
		ev.AttachmentKey = att.String
		ev.Detail = detail.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
