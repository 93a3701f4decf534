package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/classpad/classpad/internal/domain"
	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/port/database"
)

// ClassService manages classes. Every mutating operation checks that the
// caller owns the class.
type ClassService struct {
	store database.Store
}

// NewClassService creates a class service.
func NewClassService(store database.Store) *ClassService {
	return &ClassService{store: store}
}

// Create makes a new class owned by the given instructor.
func (s *ClassService) Create(ctx context.Context, ownerID string, req class.CreateRequest) (*class.Class, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	c := &class.Class{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.store.CreateClass(ctx, c); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	return c, nil
}

// Get returns a class the caller owns.
func (s *ClassService) Get(ctx context.Context, ownerID, id string) (*class.Class, error) {
	return s.owned(ctx, ownerID, id)
}

// List returns the caller's classes.
func (s *ClassService) List(ctx context.Context, ownerID string) ([]class.Class, error) {
	return s.store.ListClassesByOwner(ctx, ownerID)
}

// Update applies the non-zero fields of req to an owned class.
func (s *ClassService) Update(ctx context.Context, ownerID, id string, req class.UpdateRequest) (*class.Class, error) {
	c, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if err := (&class.CreateRequest{Name: c.Name, Description: c.Description}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	if err := s.store.UpdateClass(ctx, c); err != nil {
		return nil, fmt.Errorf("update class: %w", err)
	}
	return c, nil
}

// Archive marks a class archived. Archived classes keep their history but
// no longer accept new sections or sessions.
func (s *ClassService) Archive(ctx context.Context, ownerID, id string) (*class.Class, error) {
	c, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	c.Archived = true
	if err := s.store.UpdateClass(ctx, c); err != nil {
		return nil, fmt.Errorf("archive class: %w", err)
	}
	return c, nil
}

// Delete removes an owned class and, via cascade, its sections,
// enrollments and sessions.
func (s *ClassService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	return s.store.DeleteClass(ctx, id)
}

func (s *ClassService) owned(ctx context.Context, ownerID, id string) (*class.Class, error) {
	c, err := s.store.GetClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: class %s", domain.ErrForbidden, id)
	}
	return c, nil
}
