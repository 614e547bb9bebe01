// Package audit keeps a sqlite trail of routing decisions.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/router"
)

// Entry is a stored decision. Err holds the error text, empty on success.
type Entry struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id,omitempty"`
	Question    string       `json:"question"`
	Tool        string       `json:"tool,omitempty"`
	ActionInput string       `json:"action_input,omitempty"`
	Attempts    int          `json:"attempts"`
	State       router.State `json:"state"`
	ErrKind     apperr.Kind  `json:"error_kind,omitempty"`
	Err         string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	DurationMs  int64        `json:"duration_ms"`
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New uses an already opened database.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		return nil, fmt.Errorf("audit: failed to initialize tables: %w", err)
	}
	return s, nil
}

func (s *Store) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS routing_decisions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL,
		tool TEXT NOT NULL DEFAULT '',
		action_input TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL,
		state TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_routing_decisions_session ON routing_decisions(session_id);
	CREATE INDEX IF NOT EXISTS idx_routing_decisions_tool ON routing_decisions(tool);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// Record implements router.Recorder for decisions outside any session.
func (s *Store) Record(ctx context.Context, d router.Decision) error {
	return s.RecordSession(ctx, "", d)
}

// RecordSession stores d under sessionID. Re-recording an ID replaces it.
func (s *Store) RecordSession(ctx context.Context, sessionID string, d router.Decision) error {
	var errMsg string
	var kind apperr.Kind
	if d.Err != nil {
		errMsg = d.Err.Error()
		kind = apperr.KindOf(d.Err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO routing_decisions
			(id, session_id, question, tool, action_input, attempts, state, error_kind, error_message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, sessionID, d.Question, d.Tool, d.ActionInput, d.Attempts, string(d.State),
		string(kind), errMsg, d.StartedAt.UTC(), d.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("audit: failed to insert decision: %w", err)
	}
	return nil
}

// List returns the newest decisions first. An empty sessionID lists all
// sessions; limit <= 0 means 100.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, session_id, question, tool, action_input, attempts, state, error_kind, error_message, started_at, duration_ms
		FROM routing_decisions`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var state, kind string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Question, &e.Tool, &e.ActionInput, &e.Attempts,
			&state, &kind, &e.Err, &e.StartedAt, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("audit: failed to scan decision: %w", err)
		}
		e.State = router.State(state)
		e.ErrKind = apperr.Kind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows iteration error: %w", err)
	}
	return out, nil
}

// SessionRecorder binds a session ID so the store can be handed to a router.
type SessionRecorder struct {
	Store     *Store
	SessionID string
}

func (r SessionRecorder) Record(ctx context.Context, d router.Decision) error {
	return r.Store.RecordSession(ctx, r.SessionID, d)
}
