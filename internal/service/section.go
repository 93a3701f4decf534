package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/classpad/classpad/internal/domain"
	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/joincode"
	"github.com/classpad/classpad/internal/port/cache"
	"github.com/classpad/classpad/internal/port/database"
)

// codeRetries bounds join-code generation attempts. With an 8-character
// code the collision odds are negligible; the bound exists so a broken
// RNG or a full keyspace cannot loop forever.
const codeRetries = 5

// SectionService manages sections and their join codes. Code-to-section
// resolution is cached because every student join starts with it.
type SectionService struct {
	store database.Store
	cache cache.Cache
}

// NewSectionService creates a section service.
func NewSectionService(store database.Store, cache cache.Cache) *SectionService {
	return &SectionService{store: store, cache: cache}
}

// Create makes a section under a class the caller owns, with a freshly
// generated join code.
func (s *SectionService) Create(ctx context.Context, ownerID, classID string, req class.CreateSectionRequest) (*class.Section, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	c, err := s.ownedClass(ctx, ownerID, classID)
	if err != nil {
		return nil, err
	}
	if c.Archived {
		return nil, fmt.Errorf("%w: class is archived", domain.ErrValidation)
	}

	sec := &class.Section{
		ID:      uuid.NewString(),
		ClassID: classID,
		Name:    req.Name,
		Active:  true,
	}

	for attempt := range codeRetries {
		code, err := joincode.Generate()
		if err != nil {
			return nil, err
		}
		sec.JoinCode = code

		err = s.store.CreateSection(ctx, sec)
		if err == nil {
			return sec, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("create section: %w", err)
		}
		slog.Warn("join code collision, retrying", "attempt", attempt+1)
	}
	return nil, errors.New("could not allocate a unique join code")
}

// Get returns a section under a class the caller owns.
func (s *SectionService) Get(ctx context.Context, ownerID, id string) (*class.Section, error) {
	return s.ownedSection(ctx, ownerID, id)
}

// List returns the sections of an owned class.
func (s *SectionService) List(ctx context.Context, ownerID, classID string) ([]class.Section, error) {
	if _, err := s.ownedClass(ctx, ownerID, classID); err != nil {
		return nil, err
	}
	return s.store.ListSectionsByClass(ctx, classID)
}

// Update applies the non-zero fields of req to an owned section.
func (s *SectionService) Update(ctx context.Context, ownerID, id string, req class.UpdateSectionRequest) (*class.Section, error) {
	sec, err := s.ownedSection(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		sec.Name = req.Name
	}
	if req.Active != nil {
		sec.Active = *req.Active
	}

	if err := s.store.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	s.invalidateCode(ctx, sec.JoinCode)
	return sec, nil
}

// RotateCode replaces a section's join code. The old code stops working
// immediately; students already enrolled are unaffected.
func (s *SectionService) RotateCode(ctx context.Context, ownerID, id string) (*class.Section, error) {
	sec, err := s.ownedSection(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	oldCode := sec.JoinCode

	for attempt := range codeRetries {
		code, err := joincode.Generate()
		if err != nil {
			return nil, err
		}
		sec.JoinCode = code

		err = s.store.UpdateSection(ctx, sec)
		if err == nil {
			s.invalidateCode(ctx, oldCode)
			return sec, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		slog.Warn("join code collision, retrying", "attempt", attempt+1)
	}
	return nil, errors.New("could not allocate a unique join code")
}

// Delete removes an owned section.
func (s *SectionService) Delete(ctx context.Context, ownerID, id string) error {
	sec, err := s.ownedSection(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSection(ctx, id); err != nil {
		return err
	}
	s.invalidateCode(ctx, sec.JoinCode)
	return nil
}

// ResolveCode maps a user-entered join code to its section, consulting
// the cache first.
func (s *SectionService) ResolveCode(ctx context.Context, raw string) (*class.Section, error) {
	code := joincode.Normalize(raw)
	if code == "" {
		return nil, fmt.Errorf("%w: malformed join code", domain.ErrValidation)
	}

	if data, ok, _ := s.cache.Get(ctx, codeKey(code)); ok {
		sec, err := s.store.GetSection(ctx, string(data))
		// A stale entry (section deleted, code rotated) falls through to
		// the authoritative lookup.
		if err == nil && sec.JoinCode == code {
			return sec, nil
		}
		s.invalidateCode(ctx, code)
	}

	sec, err := s.store.GetSectionByJoinCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, codeKey(code), []byte(sec.ID), 0); err != nil {
		slog.Debug("join code cache set failed", "error", err)
	}
	return sec, nil
}

func (s *SectionService) invalidateCode(ctx context.Context, code string) {
	if err := s.cache.Delete(ctx, codeKey(code)); err != nil {
		slog.Debug("join code cache delete failed", "error", err)
	}
}

func codeKey(code string) string {
	return "joincode:" + code
}

func (s *SectionService) ownedClass(ctx context.Context, ownerID, classID string) (*class.Class, error) {
	c, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: class %s", domain.ErrForbidden, classID)
	}
	return c, nil
}

func (s *SectionService) ownedSection(ctx context.Context, ownerID, id string) (*class.Section, error) {
	sec, err := s.store.GetSection(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedClass(ctx, ownerID, sec.ClassID); err != nil {
		return nil, err
	}
	return sec, nil
}
