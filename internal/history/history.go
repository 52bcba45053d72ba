// Package history keeps an append-only audit trail of rotation events in
// SQLite. The trail is advisory: recording is best-effort and never blocks
// or fails a rotation transition.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Kind mirrors rotation event kinds as stored values.
type Kind string

const (
	KindAnnounced     Kind = "announced"
	KindConfirmed     Kind = "confirmed"
	KindDenied        Kind = "denied"
	KindSkipped       Kind = "skipped"
	KindMemberAdded   Kind = "member_added"
	KindMemberRemoved Kind = "member_removed"
)

// Event is one audit row. Outgoing/Incoming name the members involved in
// the transition; either may be empty depending on the kind.
type Event struct {
	ID       string
	Kind     Kind
	Actor    string
	Outgoing string
	Incoming string
	At       time.Time
}

// Store persists events in a single SQLite table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	idGenerator func() string
	now         func() time.Time
}

// Open opens the SQLite database at dsn. A single connection is used since
// the process is the only writer.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	return &Store{
		db:          db,
		logger:      logger,
		idGenerator: uuid.NewString,
		now:         time.Now,
	}, nil
}

// Migrate creates the events table when absent.
func (s *Store) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS rotation_events (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	outgoing   TEXT NOT NULL DEFAULT '',
	incoming   TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rotation_events_created_at ON rotation_events (created_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Record inserts an event, filling in ID and timestamp when absent.
func (s *Store) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = s.idGenerator()
	}
	if event.At.IsZero() {
		event.At = s.now().UTC()
	}

	const query = `
INSERT INTO rotation_events (id, kind, actor, outgoing, incoming, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Kind),
		event.Actor,
		event.Outgoing,
		event.Incoming,
		event.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("history: record %s event: %w", event.Kind, err)
	}
	return nil
}

// Recent returns the newest events, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `
SELECT id, kind, actor, outgoing, incoming, created_at
FROM rotation_events
ORDER BY created_at DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var createdAt string
		if err := rows.Scan(&event.ID, &event.Kind, &event.Actor, &event.Outgoing, &event.Incoming, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			s.logger.Warn("unparseable event timestamp", "id", event.ID, "created_at", createdAt)
		} else {
			event.At = at
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list events: %w", err)
	}
	return events, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
