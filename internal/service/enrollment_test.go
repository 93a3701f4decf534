package service

import (
	"context"
	"errors"
	"testing"

	"github.com/classpad/classpad/internal/domain"
	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/domain/enrollment"
	"github.com/classpad/classpad/internal/domain/user"
)

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *mockStore, *class.Section) {
	t.Helper()
	store := newMockStore()
	sections := NewSectionService(store, newMemCache())
	svc := NewEnrollmentService(store, sections)
	ctx := context.Background()

	c, err := NewClassService(store).Create(ctx, "owner-1", class.CreateRequest{Name: "Go 101"})
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	sec, err := sections.Create(ctx, "owner-1", c.ID, class.CreateSectionRequest{Name: "Morning"})
	if err != nil {
		t.Fatalf("create section: %v", err)
	}
	return svc, store, sec
}

func TestJoinByCode(t *testing.T) {
	svc, store, sec := newEnrollmentFixture(t)
	ctx := context.Background()

	student := &user.User{ID: "student-1", Email: "s@example.com", Name: "Student", Role: user.RoleStudent, Enabled: true}
	if err := store.CreateUser(ctx, student); err != nil {
		t.Fatalf("create user: %v", err)
	}

	e, joined, err := svc.Join(ctx, "student-1", enrollment.JoinRequest{Code: sec.JoinCode})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.ID != sec.ID || e.SectionID != sec.ID {
		t.Errorf("joined section %q, want %q", joined.ID, sec.ID)
	}

	// Joining again is idempotent.
	again, _, err := svc.Join(ctx, "student-1", enrollment.JoinRequest{Code: sec.JoinCode})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.ID != e.ID {
		t.Errorf("rejoin created a second enrollment: %q vs %q", again.ID, e.ID)
	}

	roster, err := svc.Roster(ctx, "owner-1", sec.ID)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Email != "s@example.com" {
		t.Errorf("roster = %+v, want one entry for s@example.com", roster)
	}
}

func TestJoinRejectsInactiveSection(t *testing.T) {
	svc, store, sec := newEnrollmentFixture(t)
	ctx := context.Background()

	sec.Active = false
	if err := store.UpdateSection(ctx, sec); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, _, err := svc.Join(ctx, "student-1", enrollment.JoinRequest{Code: sec.JoinCode})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)

	_, _, err := svc.Join(context.Background(), "student-1", enrollment.JoinRequest{Code: "ABCD-EFGH"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLeaveAndMembership(t *testing.T) {
	svc, _, sec := newEnrollmentFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Join(ctx, "student-1", enrollment.JoinRequest{Code: sec.JoinCode}); err != nil {
		t.Fatalf("join: %v", err)
	}

	member, err := svc.IsMember(ctx, sec.ID, "student-1")
	if err != nil || !member {
		t.Fatalf("member = %v, %v; want true", member, err)
	}

	if err := svc.Leave(ctx, "student-1", sec.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	member, err = svc.IsMember(ctx, sec.ID, "student-1")
	if err != nil || member {
		t.Errorf("member = %v, %v; want false", member, err)
	}
}

func TestRosterRequiresOwnership(t *testing.T) {
	svc, _, sec := newEnrollmentFixture(t)

	_, err := svc.Roster(context.Background(), "intruder", sec.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden", err)
	}
}

func TestRemoveStudent(t *testing.T) {
	svc, _, sec := newEnrollmentFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Join(ctx, "student-1", enrollment.JoinRequest{Code: sec.JoinCode}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := svc.Remove(ctx, "owner-1", sec.ID, "student-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	member, _ := svc.IsMember(ctx, sec.ID, "student-1")
	if member {
		t.Error("student still enrolled after remove")
	}
}
