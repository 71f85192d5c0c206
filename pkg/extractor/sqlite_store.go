package extractor

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pudingtabi/sequor/pkg/errors"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

// SQLiteEventStore implements EventStore using SQLite as the backend.
type SQLiteEventStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	initialized sync.Once
}

// NewSQLiteEventStore opens (or creates) the event log at path. If path is
// ":memory:", the database lives in-memory.
func NewSQLiteEventStore(path string) (*SQLiteEventStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Unknown, "failed to open SQLite event log"),
			errors.Fields{"path": path},
		)
	}

	store := &SQLiteEventStore{
		db:   db,
		path: path,
	}
	if err := store.ensureInitialized(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteEventStore) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		// Enable WAL mode for better concurrency
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.Unknown, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            session_id TEXT NOT NULL,
            tool TEXT NOT NULL,
            operation TEXT NOT NULL,
            params TEXT,
            success INTEGER,
            duration_ms INTEGER,
            timestamp DATETIME NOT NULL
        );

        CREATE INDEX IF NOT EXISTS idx_events_session
        ON events(session_id);

        CREATE INDEX IF NOT EXISTS idx_events_timestamp
        ON events(timestamp);
        `

		if _, err := s.db.Exec(query); err != nil {
			initErr = errors.WithFields(
				errors.Wrap(err, errors.Unknown, "failed to initialize event log"),
				errors.Fields{"path": s.path},
			)
			return
		}
	})
	return initErr
}

// Append writes a batch of events inside one transaction.
func (s *SQLiteEventStore) Append(ctx context.Context, events []workflow.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO events (session_id, tool, operation, params, success, duration_ms, timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, errors.Unknown, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, e := range events {
		var params interface{}
		if len(e.Params) > 0 {
			data, err := json.Marshal(e.Params)
			if err != nil {
				_ = tx.Rollback()
				return errors.WithFields(
					errors.Wrap(err, errors.InvalidInput, "failed to marshal event params"),
					errors.Fields{"session_id": e.SessionID, "tool": e.Tool},
				)
			}
			params = string(data)
		}

		var success interface{}
		if e.Success != nil {
			success = *e.Success
		}
		var duration interface{}
		if e.DurationMS != nil {
			duration = *e.DurationMS
		}

		if _, err := stmt.ExecContext(ctx, e.SessionID, e.Tool, e.Operation, params, success, duration, e.Timestamp.UTC()); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, errors.Unknown, "failed to insert event")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to commit events")
	}
	return nil
}

// Events reads back events matching the filter in insertion order.
func (s *SQLiteEventStore) Events(ctx context.Context, filter Filter) ([]workflow.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT session_id, tool, operation, params, success, duration_ms, timestamp FROM events`
	var clauses []string
	var args []interface{}

	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(filter.SessionIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.SessionIDs)), ",")
		clauses = append(clauses, "session_id IN ("+placeholders+")")
		for _, id := range filter.SessionIDs {
			args = append(args, id)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to query events")
	}
	defer rows.Close()

	var events []workflow.Event
	for rows.Next() {
		var (
			e         workflow.Event
			params    sql.NullString
			success   sql.NullBool
			duration  sql.NullInt64
			timestamp time.Time
		)
		if err := rows.Scan(&e.SessionID, &e.Tool, &e.Operation, &params, &success, &duration, &timestamp); err != nil {
			return nil, errors.Wrap(err, errors.Unknown, "failed to scan event")
		}

		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &e.Params); err != nil {
				return nil, errors.Wrap(err, errors.Unknown, "failed to decode event params")
			}
		}
		if success.Valid {
			v := success.Bool
			e.Success = &v
		}
		if duration.Valid {
			v := duration.Int64
			e.DurationMS = &v
		}
		e.Timestamp = timestamp

		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed reading events")
	}
	return events, nil
}

// Close releases the underlying database handle.
func (s *SQLiteEventStore) Close() error {
	return s.db.Close()
}

var _ EventStore = (*SQLiteEventStore)(nil)
