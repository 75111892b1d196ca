package executive

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jllopis/pillar/pkg/errors"
)

// SQLiteAuditStore persists audit events in SQLite.
type SQLiteAuditStore struct {
	db *sql.DB
}

// OpenSQLiteAuditStore opens dsn with the modernc.org/sqlite driver.
func OpenSQLiteAuditStore(dsn string) (*SQLiteAuditStore, error) {
	if dsn == "" {
		return nil, errors.New(errors.CodeInvalidInput, "sqlite dsn is required", nil)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := NewSQLiteAuditStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteAuditStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, errors.New(errors.CodeInvalidInput, "db is nil", nil)
	}
	if err := ensureEpisodeAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteAuditStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

// Record stores a single audit event.
func (s *SQLiteAuditStore) Record(ctx context.Context, event AuditEvent) error {
	param, err := encodeAuditParameter(event.Parameter)
	if err != nil {
		return fmt.Errorf("encode parameter: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episode_audit_events (
			run_id, sequence_id, skill, parameter_json, outcome, steps, success, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.RunID,
		event.SequenceID,
		event.Skill,
		string(param),
		event.Outcome,
		event.Steps,
		event.Success,
		event.Error,
		normalizeAuditTime(event.StartedAt),
		normalizeAuditTime(event.FinishedAt),
	)
	return err
}

// List returns audit events matching the filter, oldest first.
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT run_id, sequence_id, skill, parameter_json, outcome, steps, success, error_text, started_at, finished_at
		FROM episode_audit_events
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
	if filter.Skill != "" {
		addFilter("skill = ?", filter.Skill)
	}
	if filter.SequenceID != "" {
		addFilter("sequence_id = ?", filter.SequenceID)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", filter.Outcome)
	}
	query += where + " ORDER BY started_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			event     AuditEvent
			sequence  sql.NullString
			paramJSON sql.NullString
			errText   sql.NullString
			started   sql.NullTime
			finished  sql.NullTime
		)
		if err := rows.Scan(
			&event.RunID,
			&sequence,
			&event.Skill,
			&paramJSON,
			&event.Outcome,
			&event.Steps,
			&event.Success,
			&errText,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		event.SequenceID = sequence.String
		event.Error = errText.String
		if paramJSON.Valid && paramJSON.String != "" {
			if param, err := decodeAuditParameter([]byte(paramJSON.String)); err == nil {
				event.Parameter = param
			}
		}
		if started.Valid {
			event.StartedAt = started.Time.UTC()
		}
		if finished.Valid {
			event.FinishedAt = finished.Time.UTC()
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func ensureEpisodeAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS episode_audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			sequence_id TEXT,
			skill TEXT NOT NULL,
			parameter_json TEXT,
			outcome TEXT NOT NULL,
			steps INTEGER NOT NULL DEFAULT 0,
			success REAL NOT NULL DEFAULT 0,
			error_text TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_episode_audit_skill ON episode_audit_events(skill);
		CREATE INDEX IF NOT EXISTS idx_episode_audit_sequence ON episode_audit_events(sequence_id);
		CREATE INDEX IF NOT EXISTS idx_episode_audit_outcome ON episode_audit_events(outcome);
	`)
	return err
}
