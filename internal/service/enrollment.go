package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/classpad/classpad/internal/domain"
	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/domain/enrollment"
	"github.com/classpad/classpad/internal/port/database"
)

// EnrollmentService manages section membership. Students join with a
// code; instructors read rosters.
type EnrollmentService struct {
	store    database.Store
	sections *SectionService
}

// NewEnrollmentService creates an enrollment service.
func NewEnrollmentService(store database.Store, sections *SectionService) *EnrollmentService {
	return &EnrollmentService{store: store, sections: sections}
}

// Join enrolls a student into the section matching the code. Joining the
// same section twice returns the existing enrollment rather than an error.
func (s *EnrollmentService) Join(ctx context.Context, userID string, req enrollment.JoinRequest) (*enrollment.Enrollment, *class.Section, error) {
	sec, err := s.sections.ResolveCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: unknown join code", domain.ErrNotFound)
		}
		return nil, nil, err
	}

	if !sec.Active {
		return nil, nil, fmt.Errorf("%w: section is not accepting joins", domain.ErrValidation)
	}

	e := &enrollment.Enrollment{
		ID:        uuid.NewString(),
		SectionID: sec.ID,
		UserID:    userID,
	}
	err = s.store.CreateEnrollment(ctx, e)
	if errors.Is(err, domain.ErrConflict) {
		existing, getErr := s.store.GetEnrollment(ctx, sec.ID, userID)
		if getErr != nil {
			return nil, nil, getErr
		}
		return existing, sec, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create enrollment: %w", err)
	}
	return e, sec, nil
}

// Leave removes the caller's enrollment from a section.
func (s *EnrollmentService) Leave(ctx context.Context, userID, sectionID string) error {
	return s.store.DeleteEnrollment(ctx, sectionID, userID)
}

// Roster lists the students of a section owned by the caller.
func (s *EnrollmentService) Roster(ctx context.Context, ownerID, sectionID string) ([]enrollment.RosterEntry, error) {
	if _, err := s.sections.Get(ctx, ownerID, sectionID); err != nil {
		return nil, err
	}
	return s.store.ListRoster(ctx, sectionID)
}

// Remove drops a student from a section owned by the caller.
func (s *EnrollmentService) Remove(ctx context.Context, ownerID, sectionID, userID string) error {
	if _, err := s.sections.Get(ctx, ownerID, sectionID); err != nil {
		return err
	}
	return s.store.DeleteEnrollment(ctx, sectionID, userID)
}

// MySections lists the sections the caller is enrolled in.
func (s *EnrollmentService) MySections(ctx context.Context, userID string) ([]class.Section, error) {
	return s.store.ListSectionsByUser(ctx, userID)
}

// IsMember reports whether a user is enrolled in a section.
func (s *EnrollmentService) IsMember(ctx context.Context, sectionID, userID string) (bool, error) {
	_, err := s.store.GetEnrollment(ctx, sectionID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
