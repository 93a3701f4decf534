package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classpad/classpad/internal/domain/session"
)

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	panels, err := json.Marshal(sess.Panels)
	if err != nil {
		return fmt.Errorf("marshal panels: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, section_id, host_id, title, language, status, panels, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.SectionID, sess.HostID, sess.Title, sess.Language, sess.Status, panels, sess.StartedAt,
	)
	if err != nil {
		return conflictWrap(err, "create session")
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, section_id, host_id, title, language, status, panels, started_at, ended_at
		FROM sessions WHERE id = $1`, id)

	return scanSession(row)
}

func (s *Store) ListSessionsBySection(ctx context.Context, sectionID string) ([]session.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, section_id, host_id, title, language, status, panels, started_at, ended_at
		FROM sessions WHERE section_id = $1 ORDER BY started_at DESC`, sectionID)
	if err != nil {
		return nil, notFoundWrap(err, "list sessions")
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *Store) UpdateSession(ctx context.Context, sess *session.Session) error {
	panels, err := json.Marshal(sess.Panels)
	if err != nil {
		return fmt.Errorf("marshal panels: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET title = $2, language = $3, status = $4, panels = $5, ended_at = $6
		WHERE id = $1`,
		sess.ID, sess.Title, sess.Language, sess.Status, panels, sess.EndedAt,
	)
	return execExpectOne(tag, err, "update session %s", sess.ID)
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*session.Session, error) {
	var (
		sess   session.Session
		panels []byte
	)
	err := row.Scan(&sess.ID, &sess.SectionID, &sess.HostID, &sess.Title, &sess.Language,
		&sess.Status, &panels, &sess.StartedAt, &sess.EndedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get session")
	}
	if err := json.Unmarshal(panels, &sess.Panels); err != nil {
		return nil, fmt.Errorf("unmarshal panels: %w", err)
	}
	return &sess, nil
}

// AppendSnapshot inserts the next editor snapshot for a session and returns
// its sequence number. The sequence is allocated inside the insert so
// concurrent snapshots never collide.
func (s *Store) AppendSnapshot(ctx context.Context, snap *session.Snapshot) (int64, error) {
	snap.TakenAt = time.Now().UTC()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO snapshots (session_id, seq, author_id, content, taken_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4
		FROM snapshots WHERE session_id = $1
		RETURNING seq`,
		snap.SessionID, snap.AuthorID, snap.Content, snap.TakenAt,
	)
	if err := row.Scan(&snap.Seq); err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}
	return snap.Seq, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, seq, author_id, content, taken_at
		FROM snapshots WHERE session_id = $1
		ORDER BY seq DESC LIMIT 1`, sessionID)

	var snap session.Snapshot
	err := row.Scan(&snap.SessionID, &snap.Seq, &snap.AuthorID, &snap.Content, &snap.TakenAt)
	if err != nil {
		return nil, notFoundWrap(err, "latest snapshot %s", sessionID)
	}
	return &snap, nil
}
