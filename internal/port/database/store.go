// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/domain/enrollment"
	"github.com/classpad/classpad/internal/domain/session"
	"github.com/classpad/classpad/internal/domain/user"
)

// Store is the port interface for database operations.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	UpdateUser(ctx context.Context, u *user.User) error
	DeleteUser(ctx context.Context, id string) error

	// Refresh tokens
	CreateRefreshToken(ctx context.Context, rt *user.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*user.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID string, newRT *user.RefreshToken) error
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteRefreshTokensByUser(ctx context.Context, userID string) error
	PurgeExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)

	// Classes
	CreateClass(ctx context.Context, c *class.Class) error
	GetClass(ctx context.Context, id string) (*class.Class, error)
	ListClassesByOwner(ctx context.Context, ownerID string) ([]class.Class, error)
	UpdateClass(ctx context.Context, c *class.Class) error
	DeleteClass(ctx context.Context, id string) error

	// Sections
	CreateSection(ctx context.Context, sec *class.Section) error
	GetSection(ctx context.Context, id string) (*class.Section, error)
	GetSectionByJoinCode(ctx context.Context, code string) (*class.Section, error)
	ListSectionsByClass(ctx context.Context, classID string) ([]class.Section, error)
	UpdateSection(ctx context.Context, sec *class.Section) error
	DeleteSection(ctx context.Context, id string) error

	// Enrollments
	CreateEnrollment(ctx context.Context, e *enrollment.Enrollment) error
	GetEnrollment(ctx context.Context, sectionID, userID string) (*enrollment.Enrollment, error)
	ListRoster(ctx context.Context, sectionID string) ([]enrollment.RosterEntry, error)
	ListSectionsByUser(ctx context.Context, userID string) ([]class.Section, error)
	DeleteEnrollment(ctx context.Context, sectionID, userID string) error

	// Sessions
	CreateSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListSessionsBySection(ctx context.Context, sectionID string) ([]session.Session, error)
	UpdateSession(ctx context.Context, s *session.Session) error

	// Snapshots
	AppendSnapshot(ctx context.Context, snap *session.Snapshot) (int64, error)
	LatestSnapshot(ctx context.Context, sessionID string) (*session.Snapshot, error)
}
