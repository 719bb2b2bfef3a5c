// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arogyalabs/medgraph/pkg/core"
)

// SQLiteStore persists audit events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores a single audit event.
func (s *SQLiteStore) Record(ctx context.Context, event Event) error {
	intents, err := json.Marshal(event.Intents)
	if err != nil {
		return err
	}
	toolNames, err := json.Marshal(event.Tools)
	if err != nil {
		return err
	}
	queries, err := json.Marshal(event.Queries)
	if err != nil {
		return err
	}
	started := event.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			request_id, actor_id, actor_role, subject_id, query,
			intents_json, tools_json, outcome, tier, confidence,
			queries_json, error_text, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.RequestID,
		event.ActorID,
		event.ActorRole,
		event.SubjectID,
		event.Query,
		string(intents),
		string(toolNames),
		event.Outcome,
		event.Tier,
		event.Confidence,
		string(queries),
		event.Error,
		started.UTC(),
		event.Duration.Milliseconds(),
	)
	return err
}

// List returns audit events matching the filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT request_id, actor_id, actor_role, subject_id, query,
		       intents_json, tools_json, outcome, tier, confidence,
		       queries_json, error_text, started_at, duration_ms
		FROM audit_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.ActorID != "" {
		addFilter("actor_id = ?", filter.ActorID)
	}
	if filter.SubjectID != "" {
		addFilter("subject_id = ?", filter.SubjectID)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", filter.Outcome)
	}
	query += where + " ORDER BY started_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event       Event
			intentsJSON string
			toolsJSON   string
			queriesJSON string
			started     sql.NullTime
			durationMs  int64
		)
		if err := rows.Scan(
			&event.RequestID,
			&event.ActorID,
			&event.ActorRole,
			&event.SubjectID,
			&event.Query,
			&intentsJSON,
			&toolsJSON,
			&event.Outcome,
			&event.Tier,
			&event.Confidence,
			&queriesJSON,
			&event.Error,
			&started,
			&durationMs,
		); err != nil {
			return nil, err
		}
		if queriesJSON != "" {
			var queries []string
			if err := json.Unmarshal([]byte(queriesJSON), &queries); err == nil {
				event.Queries = queries
			}
		}
		if intentsJSON != "" {
			var intents []core.Intent
			if err := json.Unmarshal([]byte(intentsJSON), &intents); err == nil {
				event.Intents = intents
			}
		}
		if toolsJSON != "" {
			var toolNames []core.ToolName
			if err := json.Unmarshal([]byte(toolsJSON), &toolNames); err == nil {
				event.Tools = toolNames
			}
		}
		if started.Valid {
			event.StartedAt = started.Time
		}
		event.Duration = time.Duration(durationMs) * time.Millisecond
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			query TEXT,
			intents_json TEXT,
			tools_json TEXT,
			outcome TEXT NOT NULL,
			tier INTEGER,
			confidence REAL,
			queries_json TEXT,
			error_text TEXT,
			started_at TIMESTAMP,
			duration_ms INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor_id);
		CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_events(subject_id);
		CREATE INDEX IF NOT EXISTS idx_audit_outcome ON audit_events(outcome);
	`)
	return err
}

var _ Store = (*SQLiteStore)(nil)
