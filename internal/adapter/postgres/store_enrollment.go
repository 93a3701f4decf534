package postgres

import (
	"context"
	"time"

	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/domain/enrollment"
)

func (s *Store) CreateEnrollment(ctx context.Context, e *enrollment.Enrollment) error {
	e.JoinedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enrollments (id, section_id, user_id, joined_at)
		VALUES ($1, $2, $3, $4)`,
		e.ID, e.SectionID, e.UserID, e.JoinedAt,
	)
	if err != nil {
		return conflictWrap(err, "create enrollment")
	}
	return nil
}

func (s *Store) GetEnrollment(ctx context.Context, sectionID, userID string) (*enrollment.Enrollment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, section_id, user_id, joined_at
		FROM enrollments WHERE section_id = $1 AND user_id = $2`, sectionID, userID)

	var e enrollment.Enrollment
	err := row.Scan(&e.ID, &e.SectionID, &e.UserID, &e.JoinedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get enrollment")
	}
	return &e, nil
}

func (s *Store) ListRoster(ctx context.Context, sectionID string) ([]enrollment.RosterEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.email, u.name, e.joined_at
		FROM enrollments e
		JOIN users u ON u.id = e.user_id
		WHERE e.section_id = $1
		ORDER BY e.joined_at`, sectionID)
	if err != nil {
		return nil, notFoundWrap(err, "list roster")
	}
	defer rows.Close()

	var roster []enrollment.RosterEntry
	for rows.Next() {
		var entry enrollment.RosterEntry
		if err := rows.Scan(&entry.UserID, &entry.Email, &entry.Name, &entry.JoinedAt); err != nil {
			return nil, notFoundWrap(err, "scan roster entry")
		}
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}

func (s *Store) ListSectionsByUser(ctx context.Context, userID string) ([]class.Section, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.class_id, s.name, s.join_code, s.active, s.created_at, s.updated_at
		FROM enrollments e
		JOIN sections s ON s.id = e.section_id
		WHERE e.user_id = $1
		ORDER BY e.joined_at`, userID)
	if err != nil {
		return nil, notFoundWrap(err, "list sections by user")
	}
	defer rows.Close()

	var sections []class.Section
	for rows.Next() {
		var sec class.Section
		if err := rows.Scan(&sec.ID, &sec.ClassID, &sec.Name, &sec.JoinCode, &sec.Active, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
			return nil, notFoundWrap(err, "scan section")
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *Store) DeleteEnrollment(ctx context.Context, sectionID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM enrollments WHERE section_id = $1 AND user_id = $2`, sectionID, userID)
	return execExpectOne(tag, err, "delete enrollment")
}
