package authgate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// SQLSink persists security events to a relational table through
// database/sql. It targets drivers with question-mark placeholders (SQLite,
// MySQL); for anything else, wrap your own AuditSink.
//
// The sink creates its table on construction, so it works against a fresh
// database without a migration step. Write failures are counted, never
// propagated: a broken audit database must not take authentication down
// with it.
type SQLSink struct {
	db       *sql.DB
	table    string
	failures atomic.Uint64
}

// NewSQLSink prepares the events table and returns the sink. An empty table
// name defaults to "security_events".
func NewSQLSink(db *sql.DB, table string) (*SQLSink, error) {
	if table == "" {
		table = "security_events"
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts             TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	user_id        TEXT,
	session_id     TEXT,
	client_address TEXT,
	user_agent     TEXT,
	description    TEXT,
	success        INTEGER NOT NULL,
	error          TEXT,
	metadata       TEXT
)`, table)
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	return &SQLSink{db: db, table: table}, nil
}

func (s *SQLSink) Emit(ctx context.Context, event SecurityEvent) {
	if s == nil || s.db == nil {
		return
	}

	var metadata []byte
	if len(event.Metadata) > 0 {
		metadata, _ = json.Marshal(event.Metadata)
	}

	success := 0
	if event.Success {
		success = 1
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (ts, event_type, user_id, session_id, client_address, user_agent, description, success, error, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.table,
	)
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.EventType,
		event.UserID,
		event.SessionID,
		event.ClientAddress,
		event.UserAgent,
		event.Description,
		success,
		event.Error,
		string(metadata),
	)
	if err != nil {
		s.failures.Add(1)
	}
}

// WriteFailures reports how many inserts have failed since construction.
func (s *SQLSink) WriteFailures() uint64 {
	if s == nil {
		return 0
	}
	return s.failures.Load()
}

// validIdentifier admits plain table names; the name is interpolated into
// DDL and the insert, so anything else is refused outright.
func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
