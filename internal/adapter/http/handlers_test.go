package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	httpapi "github.com/classpad/classpad/internal/adapter/http"
	"github.com/classpad/classpad/internal/adapter/ws"
	"github.com/classpad/classpad/internal/config"
	"github.com/classpad/classpad/internal/domain/class"
	"github.com/classpad/classpad/internal/domain/enrollment"
	"github.com/classpad/classpad/internal/domain/event"
	"github.com/classpad/classpad/internal/domain/session"
	"github.com/classpad/classpad/internal/domain/user"
	"github.com/classpad/classpad/internal/middleware"
	"github.com/classpad/classpad/internal/port/eventstore"
	"github.com/classpad/classpad/internal/resilience"
	"github.com/classpad/classpad/internal/service"
)

// memCache is an in-memory cache.Cache for handler tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type sentBroadcast struct {
	channel string
	event   string
}

// fakeBroadcaster records broadcasts; the websocket leave path publishes
// from a goroutine, so access is locked.
type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []sentBroadcast
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, channel, event string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentBroadcast{channel: channel, event: event})
	return nil
}

func (f *fakeBroadcaster) events(channel string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.channel == channel {
			out = append(out, s.event)
		}
	}
	return out
}

type fakeEvents struct{}

func (fakeEvents) PublishEvent(context.Context, event.Envelope) error { return nil }

func (fakeEvents) SubscribeEvents(context.Context, string, eventstore.Handler) (func(), error) {
	return func() {}, nil
}

// api is a full HTTP stack over in-memory adapters.
type api struct {
	t      *testing.T
	srv    *httptest.Server
	sender *fakeBroadcaster
}

func newAPI(t *testing.T) *api {
	t.Helper()

	store := newMockStore()
	authCfg := config.Auth{
		JWTSecret:          "handler-test-secret",
		CookieSecret:       "handler-cookie-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		CookieExpiry:       24 * time.Hour,
		BcryptCost:         4, // low cost for fast tests
	}

	auth := service.NewAuthService(store, &authCfg)
	classes := service.NewClassService(store)
	sections := service.NewSectionService(store, &memCache{data: map[string][]byte{}})
	enrollments := service.NewEnrollmentService(store, sections)
	sender := &fakeBroadcaster{}
	breaker := resilience.NewBreaker(config.Breaker{MaxFailures: 3, Timeout: time.Minute})
	sessions := service.NewSessionService(store, enrollments, sections, sender, fakeEvents{}, breaker)

	h := &httpapi.Handlers{
		Auth:        auth,
		Classes:     classes,
		Sections:    sections,
		Enrollments: enrollments,
		Sessions:    sessions,
		Hub:         ws.NewHub(),
		AuthCfg:     authCfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.Auth(auth))
	httpapi.MountRoutes(r, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &api{t: t, srv: srv, sender: sender}
}

func (a *api) do(method, path, token string, body any) *http.Response {
	a.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	if err != nil {
		a.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// signup registers an account and logs in, returning the access token.
func (a *api) signup(email string, role user.Role) string {
	a.t.Helper()

	resp := a.do(http.MethodPost, "/api/v1/auth/register", "", user.CreateRequest{
		Email:    email,
		Name:     "Test " + string(role),
		Password: "password123",
		Role:     role,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		a.t.Fatalf("register %s: status = %d, want 201", email, resp.StatusCode)
	}

	login := a.do(http.MethodPost, "/api/v1/auth/login", "", user.LoginRequest{
		Email:    email,
		Password: "password123",
	})
	if login.StatusCode != http.StatusOK {
		a.t.Fatalf("login %s: status = %d, want 200", email, login.StatusCode)
	}
	return decode[user.LoginResponse](a.t, login).AccessToken
}

// classroom creates a class with one section owned by the instructor token.
func (a *api) classroom(token string) (class.Class, class.Section) {
	a.t.Helper()

	cls := decode[class.Class](a.t, a.do(http.MethodPost, "/api/v1/classes", token, class.CreateRequest{
		Name: "Intro to Go",
	}))
	sec := decode[class.Section](a.t, a.do(http.MethodPost, "/api/v1/classes/"+cls.ID+"/sections", token, class.CreateSectionRequest{
		Name: "Period 1",
	}))
	return cls, sec
}

func TestLoginSetsCookies(t *testing.T) {
	a := newAPI(t)
	a.signup("teach@example.com", user.RoleInstructor)

	resp := a.do(http.MethodPost, "/api/v1/auth/login", "", user.LoginRequest{
		Email:    "teach@example.com",
		Password: "password123",
	})
	defer resp.Body.Close()

	names := map[string]bool{}
	for _, c := range resp.Cookies() {
		names[c.Name] = true
	}
	if !names["classpad_refresh"] || !names[middleware.SessionCookieName] {
		t.Errorf("login cookies = %v, want refresh and session cookies", names)
	}
}

func TestRegisterAdminForbidden(t *testing.T) {
	a := newAPI(t)

	resp := a.do(http.MethodPost, "/api/v1/auth/register", "", user.CreateRequest{
		Email:    "boss@example.com",
		Name:     "Boss",
		Password: "password123",
		Role:     user.RoleAdmin,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestRefreshRotatesCookie(t *testing.T) {
	a := newAPI(t)
	a.signup("teach@example.com", user.RoleInstructor)

	login := a.do(http.MethodPost, "/api/v1/auth/login", "", user.LoginRequest{
		Email:    "teach@example.com",
		Password: "password123",
	})
	login.Body.Close()

	var refresh *http.Cookie
	for _, c := range login.Cookies() {
		if c.Name == "classpad_refresh" {
			refresh = c
		}
	}
	if refresh == nil {
		t.Fatal("no refresh cookie after login")
	}

	req, _ := http.NewRequest(http.MethodPost, a.srv.URL+"/api/v1/auth/refresh", http.NoBody)
	req.AddCookie(refresh)
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	if decode[user.LoginResponse](t, resp).AccessToken == "" {
		t.Error("refresh returned empty access token")
	}

	// The rotated-out cookie must not be accepted again.
	req2, _ := http.NewRequest(http.MethodPost, a.srv.URL+"/api/v1/auth/refresh", http.NoBody)
	req2.AddCookie(refresh)
	resp2, err := a.srv.Client().Do(req2)
	if err != nil {
		t.Fatalf("refresh replay: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("replayed refresh status = %d, want 401", resp2.StatusCode)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	a := newAPI(t)

	resp := a.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated /me status = %d, want 401", resp.StatusCode)
	}

	token := a.signup("teach@example.com", user.RoleInstructor)
	me := decode[user.User](t, a.do(http.MethodGet, "/api/v1/auth/me", token, nil))
	if me.Email != "teach@example.com" {
		t.Errorf("me email = %q, want teach@example.com", me.Email)
	}
}

func TestStudentCannotCreateClass(t *testing.T) {
	a := newAPI(t)
	token := a.signup("kid@example.com", user.RoleStudent)

	resp := a.do(http.MethodPost, "/api/v1/classes", token, class.CreateRequest{Name: "Nope"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestClassroomFlow(t *testing.T) {
	a := newAPI(t)
	teacher := a.signup("teach@example.com", user.RoleInstructor)
	student := a.signup("kid@example.com", user.RoleStudent)

	cls, sec := a.classroom(teacher)
	if sec.ClassID != cls.ID {
		t.Fatalf("section class = %q, want %q", sec.ClassID, cls.ID)
	}
	if sec.JoinCode == "" {
		t.Fatal("section has no join code")
	}

	// Students join with a sloppily typed code.
	sloppy := strings.ToLower(strings.ReplaceAll(sec.JoinCode, "-", " "))
	joined := decode[struct {
		Enrollment enrollment.Enrollment `json:"enrollment"`
		Section    class.Section         `json:"section"`
	}](t, a.do(http.MethodPost, "/api/v1/join", student, enrollment.JoinRequest{Code: sloppy}))
	if joined.Section.ID != sec.ID {
		t.Fatalf("joined section = %q, want %q", joined.Section.ID, sec.ID)
	}

	mine := decode[[]class.Section](t, a.do(http.MethodGet, "/api/v1/me/sections", student, nil))
	if len(mine) != 1 || mine[0].ID != sec.ID {
		t.Errorf("my sections = %+v, want the joined section", mine)
	}

	roster := decode[[]enrollment.RosterEntry](t, a.do(http.MethodGet, "/api/v1/sections/"+sec.ID+"/roster", teacher, nil))
	if len(roster) != 1 || roster[0].Email != "kid@example.com" {
		t.Errorf("roster = %+v, want one entry for kid@example.com", roster)
	}

	// Students cannot read the roster.
	resp := a.do(http.MethodGet, "/api/v1/sections/"+sec.ID+"/roster", student, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("student roster status = %d, want 403", resp.StatusCode)
	}
}

func TestRotateCodeInvalidatesOld(t *testing.T) {
	a := newAPI(t)
	teacher := a.signup("teach@example.com", user.RoleInstructor)
	student := a.signup("kid@example.com", user.RoleStudent)
	_, sec := a.classroom(teacher)
	oldCode := sec.JoinCode

	rotated := decode[class.Section](t, a.do(http.MethodPost, "/api/v1/sections/"+sec.ID+"/rotate-code", teacher, nil))
	if rotated.JoinCode == oldCode {
		t.Fatal("rotate did not change join code")
	}

	resp := a.do(http.MethodPost, "/api/v1/join", student, enrollment.JoinRequest{Code: oldCode})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("join with rotated-out code status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	a := newAPI(t)
	teacher := a.signup("teach@example.com", user.RoleInstructor)
	student := a.signup("kid@example.com", user.RoleStudent)
	_, sec := a.classroom(teacher)

	joinResp := a.do(http.MethodPost, "/api/v1/join", student, enrollment.JoinRequest{Code: sec.JoinCode})
	joinResp.Body.Close()

	sess := decode[session.Session](t, a.do(http.MethodPost, "/api/v1/sections/"+sec.ID+"/sessions", teacher, session.CreateRequest{
		Title:    "Loops and slices",
		Language: "go",
	}))
	if sess.Status != session.StatusLive {
		t.Fatalf("status = %q, want %q", sess.Status, session.StatusLive)
	}

	channel := event.SessionChannel(sess.ID)
	if got := a.sender.events(channel); len(got) != 1 || got[0] != event.SessionStarted {
		t.Errorf("broadcasts after start = %v, want [%s]", got, event.SessionStarted)
	}

	// Host snapshots the editor; the student can read the latest one.
	snap := decode[session.Snapshot](t, a.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/snapshots", teacher, session.SnapshotRequest{
		Content: "package main",
	}))
	if snap.Seq != 1 {
		t.Errorf("snapshot seq = %d, want 1", snap.Seq)
	}

	latest := decode[session.Snapshot](t, a.do(http.MethodGet, "/api/v1/sessions/"+sess.ID+"/snapshots/latest", student, nil))
	if latest.Content != "package main" {
		t.Errorf("latest snapshot content = %q, want %q", latest.Content, "package main")
	}

	// Students cannot write snapshots.
	resp := a.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/snapshots", student, session.SnapshotRequest{Content: "x"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("student snapshot status = %d, want 403", resp.StatusCode)
	}

	ended := decode[session.Session](t, a.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/end", teacher, nil))
	if ended.Status != session.StatusEnded {
		t.Errorf("ended status = %q, want %q", ended.Status, session.StatusEnded)
	}

	// Ended sessions reject new snapshots.
	resp = a.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/snapshots", teacher, session.SnapshotRequest{Content: "late"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("snapshot after end status = %d, want 400", resp.StatusCode)
	}
}

func TestSessionVisibilityForOutsider(t *testing.T) {
	a := newAPI(t)
	teacher := a.signup("teach@example.com", user.RoleInstructor)
	outsider := a.signup("other@example.com", user.RoleStudent)
	_, sec := a.classroom(teacher)

	sess := decode[session.Session](t, a.do(http.MethodPost, "/api/v1/sections/"+sec.ID+"/sessions", teacher, session.CreateRequest{
		Title: "Private session",
	}))

	resp := a.do(http.MethodGet, "/api/v1/sessions/"+sess.ID, outsider, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("outsider get session status = %d, want 403", resp.StatusCode)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	a := newAPI(t)
	teacher := a.signup("teach@example.com", user.RoleInstructor)
	rival := a.signup("rival@example.com", user.RoleInstructor)
	cls, _ := a.classroom(teacher)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"unknown class", http.MethodGet, "/api/v1/classes/does-not-exist", teacher, nil, http.StatusNotFound},
		{"foreign class", http.MethodGet, "/api/v1/classes/" + cls.ID, rival, nil, http.StatusForbidden},
		{"empty class name", http.MethodPost, "/api/v1/classes", teacher, class.CreateRequest{}, http.StatusBadRequest},
		{"malformed join code", http.MethodPost, "/api/v1/join", teacher, enrollment.JoinRequest{Code: "0000-0000"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := a.do(tt.method, tt.path, tt.token, tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMalformedJSONRejected(t *testing.T) {
	a := newAPI(t)
	token := a.signup("teach@example.com", user.RoleInstructor)

	req, _ := http.NewRequest(http.MethodPost, a.srv.URL+"/api/v1/classes", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSessionSocketPresence(t *testing.T) {
	a := newAPI(t)
	teacher := a.signup("teach@example.com", user.RoleInstructor)
	_, sec := a.classroom(teacher)

	sess := decode[session.Session](t, a.do(http.MethodPost, "/api/v1/sections/"+sec.ID+"/sessions", teacher, session.CreateRequest{
		Title: "Live demo",
	}))
	channel := event.SessionChannel(sess.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Browsers cannot set headers on upgrade requests, so the token rides
	// in the query string.
	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/ws/sessions/" + sess.ID + "?token=" + teacher
	client, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if got := a.sender.events(channel); len(got) < 2 || got[1] != event.ParticipantJoined {
		t.Fatalf("broadcasts after connect = %v, want participant.joined after session.started", got)
	}

	_ = client.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for {
		got := a.sender.events(channel)
		if len(got) >= 3 && got[len(got)-1] == event.ParticipantLeft {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("broadcasts after disconnect = %v, want trailing participant.left", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSocketRejectsOutsider(t *testing.T) {
	a := newAPI(t)
	teacher := a.signup("teach@example.com", user.RoleInstructor)
	outsider := a.signup("other@example.com", user.RoleStudent)
	_, sec := a.classroom(teacher)

	sess := decode[session.Session](t, a.do(http.MethodPost, "/api/v1/sections/"+sec.ID+"/sessions", teacher, session.CreateRequest{
		Title: "Members only",
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/ws/sessions/" + sess.ID + "?token=" + outsider
	if _, _, err := websocket.Dial(ctx, wsURL, nil); err == nil { //nolint:bodyclose // dial fails before a connection exists
		t.Fatal("outsider websocket dial succeeded, want rejection")
	}
}
