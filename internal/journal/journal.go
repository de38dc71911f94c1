// Package journal records accepted recognition rounds and local edits in
// SQLite so a session can be rebuilt after a restart.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rounds (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session    TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	checksum   TEXT NOT NULL,
	jiix       BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS edits (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session    TEXT NOT NULL,
	round_id   INTEGER NOT NULL DEFAULT 0,
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session, id);
CREATE INDEX IF NOT EXISTS idx_edits_session ON edits(session, round_id, id);
`

// Store is the journal surface used by sessions and the API.
type Store interface {
	AppendRound(ctx context.Context, session string, seq uint64, data []byte) error
	LatestRound(ctx context.Context, session string) (*Round, error)
	ListRounds(ctx context.Context, session string, limit int) ([]Round, error)
	AppendEdit(ctx context.Context, session, kind, detail string) error
	ListEdits(ctx context.Context, session string, round int64) ([]Edit, error)
	Close() error
}

var _ Store = (*DB)(nil)

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
