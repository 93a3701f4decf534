package postgres

import (
	"context"
	"time"

	"github.com/classpad/classpad/internal/domain/class"
)

func (s *Store) CreateSection(ctx context.Context, sec *class.Section) error {
	now := time.Now().UTC()
	sec.CreatedAt = now
	sec.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sections (id, class_id, name, join_code, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sec.ID, sec.ClassID, sec.Name, sec.JoinCode, sec.Active, sec.CreatedAt, sec.UpdatedAt,
	)
	if err != nil {
		return conflictWrap(err, "create section")
	}
	return nil
}

func (s *Store) GetSection(ctx context.Context, id string) (*class.Section, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, class_id, name, join_code, active, created_at, updated_at
		FROM sections WHERE id = $1`, id)

	var sec class.Section
	err := row.Scan(&sec.ID, &sec.ClassID, &sec.Name, &sec.JoinCode, &sec.Active, &sec.CreatedAt, &sec.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get section %s", id)
	}
	return &sec, nil
}

func (s *Store) GetSectionByJoinCode(ctx context.Context, code string) (*class.Section, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, class_id, name, join_code, active, created_at, updated_at
		FROM sections WHERE join_code = $1`, code)

	var sec class.Section
	err := row.Scan(&sec.ID, &sec.ClassID, &sec.Name, &sec.JoinCode, &sec.Active, &sec.CreatedAt, &sec.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get section by join code")
	}
	return &sec, nil
}

func (s *Store) ListSectionsByClass(ctx context.Context, classID string) ([]class.Section, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, class_id, name, join_code, active, created_at, updated_at
		FROM sections WHERE class_id = $1 ORDER BY created_at`, classID)
	if err != nil {
		return nil, notFoundWrap(err, "list sections")
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

func (s *Store) UpdateSection(ctx context.Context, sec *class.Section) error {
	sec.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE sections SET name = $2, join_code = $3, active = $4, updated_at = $5
		WHERE id = $1`,
		sec.ID, sec.Name, sec.JoinCode, sec.Active, sec.UpdatedAt,
	)
	if err != nil {
		return conflictWrap(err, "update section %s", sec.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("update section %s", sec.ID)
	}
	return nil
}

func (s *Store) DeleteSection(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sections WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete section %s", id)
}
