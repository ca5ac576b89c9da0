package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/harun/tanya/pkg/errorx"
	"github.com/harun/tanya/pkg/memory"
	"github.com/harun/tanya/pkg/trace"
)

// Archiver persists finished conversations to SQLite for operator review.
// Archiving is best effort everywhere it is wired: the live system is
// memory-only and keeps working when the archive is unavailable.
type Archiver struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Record is one archived conversation.
type Record struct {
	SessionID  string    `json:"session_id"`
	Customer   string    `json:"customer"`
	Status     string    `json:"status"`
	Escalated  bool      `json:"escalated"`
	ArchivedAt time.Time `json:"archived_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id  TEXT PRIMARY KEY,
	customer    TEXT NOT NULL,
	status      TEXT NOT NULL,
	escalated   INTEGER NOT NULL,
	session_json TEXT NOT NULL,
	trace_json  TEXT,
	archived_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_archived_at ON sessions(archived_at);
`

// Open opens (and if needed initializes) an archive database.
func Open(path string, logger zerolog.Logger) (*Archiver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CategoryStorage, "failed to open archive database", true, false)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errorx.Wrap(err, errorx.CategoryStorage, "failed to initialize archive schema", true, false)
	}

	logger.Info().Str("path", path).Msg("Archive opened")

	return &Archiver{db: db, logger: logger}, nil
}

// Archive stores a snapshot of a session and its trace, replacing any earlier
// snapshot of the same session.
func (a *Archiver) Archive(sess *memory.Session, tr *trace.SessionTrace) error {
	sessionJSON, err := json.Marshal(sess)
	if err != nil {
		return errorx.Wrap(err, errorx.CategoryStorage, "failed to encode session", true, false)
	}

	var traceJSON []byte
	if tr != nil {
		traceJSON, err = json.Marshal(tr)
		if err != nil {
			return errorx.Wrap(err, errorx.CategoryStorage, "failed to encode trace", true, false)
		}
	}

	_, err = a.db.Exec(
		`INSERT OR REPLACE INTO sessions
			(session_id, customer, status, escalated, session_json, trace_json, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.Customer.Email,
		string(sess.Status),
		sess.Context.Escalated,
		string(sessionJSON),
		string(traceJSON),
		time.Now().UTC(),
	)
	if err != nil {
		return errorx.Wrap(err, errorx.CategoryStorage, "failed to write archive row", true, true)
	}

	a.logger.Debug().Str("session_id", sess.ID).Msg("Session archived")

	return nil
}

// Get loads one archived session snapshot.
func (a *Archiver) Get(sessionID string) (*memory.Session, *trace.SessionTrace, error) {
	var sessionJSON string
	var traceJSON sql.NullString

	err := a.db.QueryRow(
		`SELECT session_json, trace_json FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&sessionJSON, &traceJSON)
	if err == sql.ErrNoRows {
		return nil, nil, errorx.SessionNotFound(sessionID)
	}
	if err != nil {
		return nil, nil, errorx.Wrap(err, errorx.CategoryStorage, "failed to read archive row", true, true)
	}

	var sess memory.Session
	if err := json.Unmarshal([]byte(sessionJSON), &sess); err != nil {
		return nil, nil, errorx.Wrap(err, errorx.CategoryStorage, "corrupt archived session", false, false)
	}

	var tr *trace.SessionTrace
	if traceJSON.Valid && traceJSON.String != "" {
		tr = &trace.SessionTrace{}
		if err := json.Unmarshal([]byte(traceJSON.String), tr); err != nil {
			return nil, nil, errorx.Wrap(err, errorx.CategoryStorage, "corrupt archived trace", false, false)
		}
	}

	return &sess, tr, nil
}

// List returns the most recently archived conversations, newest first.
func (a *Archiver) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.Query(
		`SELECT session_id, customer, status, escalated, archived_at
		 FROM sessions ORDER BY archived_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CategoryStorage, "failed to list archive", true, true)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.SessionID, &rec.Customer, &rec.Status, &rec.Escalated, &rec.ArchivedAt); err != nil {
			return nil, errorx.Wrap(err, errorx.CategoryStorage, "failed to scan archive row", true, false)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errorx.Wrap(err, errorx.CategoryStorage, "archive iteration failed", true, true)
	}

	return records, nil
}

// Count returns the number of archived conversations.
func (a *Archiver) Count() (int, error) {
	var count int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return 0, errorx.Wrap(err, errorx.CategoryStorage, "failed to count archive", true, true)
	}
	return count, nil
}

// Close closes the underlying database.
func (a *Archiver) Close() error {
	return a.db.Close()
}

// String implements fmt.Stringer for diagnostics.
func (r Record) String() string {
	return fmt.Sprintf("%s %s status=%s escalated=%v", r.SessionID, r.Customer, r.Status, r.Escalated)
}
