package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/inkmath/internal/apperr"
	"github.com/starford/inkmath/internal/checksum"
)

// Round is an accepted recognition response.
type Round struct {
	ID        int64
	Session   string
	Seq       uint64
	Checksum  string
	JIIX      []byte
	CreatedAt time.Time
}

// Edit is a local change applied on top of the latest round at the time.
type Edit struct {
	ID        int64
	Session   string
	RoundID   int64
	Kind      string
	Detail    string
	CreatedAt time.Time
}

// AppendRound stores a JIIX document. It returns apperr.ErrAlreadyExists when
// the session's latest round holds the same document and has no edits.
func (db *DB) AppendRound(ctx context.Context, session string, seq uint64, data []byte) error {
	sum := checksum.Document(data)
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		latest string
		edits  int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT r.checksum, (SELECT COUNT(*) FROM edits e WHERE e.round_id = r.id)
		 FROM rounds r WHERE r.session = ? ORDER BY r.id DESC LIMIT 1`, session).Scan(&latest, &edits)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("journal: latest checksum: %w", err)
	case latest == sum && edits == 0:
		return apperr.ErrAlreadyExists
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rounds (session, seq, checksum, jiix, created_at) VALUES (?, ?, ?, ?, ?)`,
		session, seq, sum, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("journal: insert round: %w", err)
	}
	return tx.Commit()
}

// LatestRound returns the newest round of a session or apperr.ErrNotFound.
func (db *DB) LatestRound(ctx context.Context, session string) (*Round, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, session, seq, checksum, jiix, created_at
		FROM rounds WHERE session = ? ORDER BY id DESC LIMIT 1`, session)
	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journal: latest round: %w", err)
	}
	return r, nil
}

// ListRounds returns up to limit rounds of a session, newest first.
func (db *DB) ListRounds(ctx context.Context, session string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session, seq, checksum, jiix, created_at
		FROM rounds WHERE session = ? ORDER BY id DESC LIMIT ?`, session, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list rounds: %w", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: scan round: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(s scanner) (*Round, error) {
	var r Round
	if err := s.Scan(&r.ID, &r.Session, &r.Seq, &r.Checksum, &r.JIIX, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// AppendEdit records an edit against the session's latest round.
func (db *DB) AppendEdit(ctx context.Context, session, kind, detail string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO edits (session, round_id, kind, detail, created_at)
		VALUES (?, (SELECT COALESCE(MAX(id), 0) FROM rounds WHERE session = ?), ?, ?, ?)`,
		session, session, kind, detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("journal: insert edit: %w", err)
	}
	return nil
}

// ListEdits returns the edits recorded against round or later, oldest first.
func (db *DB) ListEdits(ctx context.Context, session string, round int64) ([]Edit, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session, round_id, kind, detail, created_at
		FROM edits WHERE session = ? AND round_id >= ? ORDER BY id`, session, round)
	if err != nil {
		return nil, fmt.Errorf("journal: list edits: %w", err)
	}
	defer rows.Close()

	var out []Edit
	for rows.Next() {
		var e Edit
		if err := rows.Scan(&e.ID, &e.Session, &e.RoundID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan edit: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
