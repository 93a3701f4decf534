package postgres

import (
	"context"
	"time"

	"github.com/classpad/classpad/internal/domain/class"
)

func (s *Store) CreateClass(ctx context.Context, c *class.Class) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO classes (id, owner_id, name, description, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.OwnerID, c.Name, c.Description, c.Archived, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return conflictWrap(err, "create class")
	}
	return nil
}

func (s *Store) GetClass(ctx context.Context, id string) (*class.Class, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, archived, created_at, updated_at
		FROM classes WHERE id = $1`, id)

	var c class.Class
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Archived, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get class %s", id)
	}
	return &c, nil
}

func (s *Store) ListClassesByOwner(ctx context.Context, ownerID string) ([]class.Class, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, description, archived, created_at, updated_at
		FROM classes WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, notFoundWrap(err, "list classes")
	}
	defer rows.Close()

	var classes []class.Class
	for rows.Next() {
		var c class.Class
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Archived, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, notFoundWrap(err, "scan class")
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func (s *Store) UpdateClass(ctx context.Context, c *class.Class) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE classes SET name = $2, description = $3, archived = $4, updated_at = $5
		WHERE id = $1`,
		c.ID, c.Name, c.Description, c.Archived, c.UpdatedAt,
	)
	return execExpectOne(tag, err, "update class %s", c.ID)
}

func (s *Store) DeleteClass(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete class %s", id)
}
