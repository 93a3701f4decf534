package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/classpad/classpad/internal/domain"
	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/domain/enrollment"
	"github.com/classpad/classpad/internal/domain/session"
	"github.com/classpad/classpad/internal/domain/user"
)

// mockStore is an in-memory database.Store for service tests.
type mockStore struct {
	mu          sync.Mutex
	users       map[string]user.User
	tokens      map[string]user.RefreshToken
	classes     map[string]class.Class
	sections    map[string]class.Section
	enrollments map[string]enrollment.Enrollment
	sessions    map[string]session.Session
	snapshots   map[string][]session.Snapshot
}

func newMockStore() *mockStore {
	return &mockStore{
		users:       make(map[string]user.User),
		tokens:      make(map[string]user.RefreshToken),
		classes:     make(map[string]class.Class),
		sections:    make(map[string]class.Section),
		enrollments: make(map[string]enrollment.Enrollment),
		sessions:    make(map[string]session.Session),
		snapshots:   make(map[string][]session.Snapshot),
	}
}

func notFoundErr(what string) error {
	return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
}

func conflictErr(what string) error {
	return fmt.Errorf("%s: %w", what, domain.ErrConflict)
}

// --- users ---

func (m *mockStore) CreateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return conflictErr("user email")
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *u
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFoundErr("user")
	}
	return &u, nil
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFoundErr("user")
}

func (m *mockStore) ListUsers(_ context.Context) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]user.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockStore) UpdateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return notFoundErr("user")
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = *u
	return nil
}

func (m *mockStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return notFoundErr("user")
	}
	delete(m.users, id)
	return nil
}

// --- refresh tokens ---

func (m *mockStore) CreateRefreshToken(_ context.Context, rt *user.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt.CreatedAt = time.Now().UTC()
	m.tokens[rt.ID] = *rt
	return nil
}

func (m *mockStore) GetRefreshTokenByHash(_ context.Context, hash string) (*user.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.tokens {
		if rt.TokenHash == hash {
			return &rt, nil
		}
	}
	return nil, notFoundErr("refresh token")
}

func (m *mockStore) RotateRefreshToken(_ context.Context, oldID string, newRT *user.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[oldID]; !ok {
		return notFoundErr("refresh token")
	}
	delete(m.tokens, oldID)
	newRT.CreatedAt = time.Now().UTC()
	m.tokens[newRT.ID] = *newRT
	return nil
}

func (m *mockStore) DeleteRefreshToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *mockStore) DeleteRefreshTokensByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rt := range m.tokens {
		if rt.UserID == userID {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *mockStore) PurgeExpiredRefreshTokens(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rt := range m.tokens {
		if rt.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

// --- classes ---

func (m *mockStore) CreateClass(_ context.Context, c *class.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.classes[c.ID] = *c
	return nil
}

func (m *mockStore) GetClass(_ context.Context, id string) (*class.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, notFoundErr("class")
	}
	return &c, nil
}

func (m *mockStore) ListClassesByOwner(_ context.Context, ownerID string) ([]class.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []class.Class
	for _, c := range m.classes {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateClass(_ context.Context, c *class.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[c.ID]; !ok {
		return notFoundErr("class")
	}
	c.UpdatedAt = time.Now().UTC()
	m.classes[c.ID] = *c
	return nil
}

func (m *mockStore) DeleteClass(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[id]; !ok {
		return notFoundErr("class")
	}
	delete(m.classes, id)
	for sid, sec := range m.sections {
		if sec.ClassID == id {
			delete(m.sections, sid)
		}
	}
	return nil
}

// --- sections ---

func (m *mockStore) CreateSection(_ context.Context, sec *class.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sections {
		if existing.JoinCode == sec.JoinCode {
			return conflictErr("join code")
		}
	}
	now := time.Now().UTC()
	sec.CreatedAt, sec.UpdatedAt = now, now
	m.sections[sec.ID] = *sec
	return nil
}

func (m *mockStore) GetSection(_ context.Context, id string) (*class.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sec, ok := m.sections[id]
	if !ok {
		return nil, notFoundErr("section")
	}
	return &sec, nil
}

func (m *mockStore) GetSectionByJoinCode(_ context.Context, code string) (*class.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sec := range m.sections {
		if sec.JoinCode == code {
			return &sec, nil
		}
	}
	return nil, notFoundErr("section")
}

func (m *mockStore) ListSectionsByClass(_ context.Context, classID string) ([]class.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []class.Section
	for _, sec := range m.sections {
		if sec.ClassID == classID {
			out = append(out, sec)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateSection(_ context.Context, sec *class.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sections[sec.ID]; !ok {
		return notFoundErr("section")
	}
	for id, existing := range m.sections {
		if id != sec.ID && existing.JoinCode == sec.JoinCode {
			return conflictErr("join code")
		}
	}
	sec.UpdatedAt = time.Now().UTC()
	m.sections[sec.ID] = *sec
	return nil
}

func (m *mockStore) DeleteSection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sections[id]; !ok {
		return notFoundErr("section")
	}
	delete(m.sections, id)
	return nil
}

// --- enrollments ---

func enrollKey(sectionID, userID string) string {
	return sectionID + "/" + userID
}

func (m *mockStore) CreateEnrollment(_ context.Context, e *enrollment.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := enrollKey(e.SectionID, e.UserID)
	if _, ok := m.enrollments[key]; ok {
		return conflictErr("enrollment")
	}
	e.JoinedAt = time.Now().UTC()
	m.enrollments[key] = *e
	return nil
}

func (m *mockStore) GetEnrollment(_ context.Context, sectionID, userID string) (*enrollment.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[enrollKey(sectionID, userID)]
	if !ok {
		return nil, notFoundErr("enrollment")
	}
	return &e, nil
}

func (m *mockStore) ListRoster(_ context.Context, sectionID string) ([]enrollment.RosterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []enrollment.RosterEntry
	for _, e := range m.enrollments {
		if e.SectionID != sectionID {
			continue
		}
		entry := enrollment.RosterEntry{UserID: e.UserID, JoinedAt: e.JoinedAt}
		if u, ok := m.users[e.UserID]; ok {
			entry.Email, entry.Name = u.Email, u.Name
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *mockStore) ListSectionsByUser(_ context.Context, userID string) ([]class.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []class.Section
	for _, e := range m.enrollments {
		if e.UserID != userID {
			continue
		}
		if sec, ok := m.sections[e.SectionID]; ok {
			out = append(out, sec)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteEnrollment(_ context.Context, sectionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := enrollKey(sectionID, userID)
	if _, ok := m.enrollments[key]; !ok {
		return notFoundErr("enrollment")
	}
	delete(m.enrollments, key)
	return nil
}

// --- sessions ---

func (m *mockStore) CreateSession(_ context.Context, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = *sess
	return nil
}

func (m *mockStore) GetSession(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, notFoundErr("session")
	}
	return &sess, nil
}

func (m *mockStore) ListSessionsBySection(_ context.Context, sectionID string) ([]session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []session.Session
	for _, sess := range m.sessions {
		if sess.SectionID == sectionID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateSession(_ context.Context, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.ID]; !ok {
		return notFoundErr("session")
	}
	m.sessions[sess.ID] = *sess
	return nil
}

// --- snapshots ---

func (m *mockStore) AppendSnapshot(_ context.Context, snap *session.Snapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Seq = int64(len(m.snapshots[snap.SessionID]) + 1)
	snap.TakenAt = time.Now().UTC()
	m.snapshots[snap.SessionID] = append(m.snapshots[snap.SessionID], *snap)
	return snap.Seq, nil
}

func (m *mockStore) LatestSnapshot(_ context.Context, sessionID string) (*session.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := m.snapshots[sessionID]
	if len(snaps) == 0 {
		return nil, notFoundErr("snapshot")
	}
	latest := snaps[len(snaps)-1]
	return &latest, nil
}
