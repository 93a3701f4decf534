package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cpotel "github.com/classpad/classpad/internal/adapter/otel"
	"github.com/classpad/classpad/internal/domain"
	"github.com/classpad/classpad/internal/domain/event"
	"github.com/classpad/classpad/internal/domain/session"
	"github.com/classpad/classpad/internal/port/broadcast"
	"github.com/classpad/classpad/internal/port/database"
	"github.com/classpad/classpad/internal/port/eventstore"
	"github.com/classpad/classpad/internal/resilience"
)

// SessionService runs live coding sessions. State changes are committed
// to the store first; realtime notification is best-effort and never
// fails the operation.
type SessionService struct {
	store       database.Store
	enrollments *EnrollmentService
	sections    *SectionService
	sender      broadcast.Broadcaster
	events      eventstore.EventStore
	breaker     *resilience.Breaker
	metrics     *cpotel.Metrics
}

// SetMetrics attaches metric instruments. Without them the service
// still works; instrumentation is skipped.
func (s *SessionService) SetMetrics(m *cpotel.Metrics) {
	s.metrics = m
}

// NewSessionService creates a session service.
func NewSessionService(
	store database.Store,
	enrollments *EnrollmentService,
	sections *SectionService,
	sender broadcast.Broadcaster,
	events eventstore.EventStore,
	breaker *resilience.Breaker,
) *SessionService {
	return &SessionService{
		store:       store,
		enrollments: enrollments,
		sections:    sections,
		sender:      sender,
		events:      events,
		breaker:     breaker,
	}
}

// Start creates a live session for a section the host owns.
func (s *SessionService) Start(ctx context.Context, hostID, sectionID string, req session.CreateRequest) (*session.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	if _, err := s.sections.Get(ctx, hostID, sectionID); err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:        uuid.NewString(),
		SectionID: sectionID,
		HostID:    hostID,
		Title:     req.Title,
		Language:  req.Language,
		Status:    session.StatusLive,
		Panels:    session.DefaultPanels(),
		StartedAt: time.Now().UTC(),
	}
	ctx, span := cpotel.StartSessionSpan(ctx, "session.start", sess.ID, sectionID)
	defer span.End()

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SessionsStarted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("language", sess.Language),
		))
	}

	s.notify(ctx, sess.ID, event.SessionStarted, map[string]any{
		"title":    sess.Title,
		"language": sess.Language,
		"host_id":  sess.HostID,
	})
	return sess, nil
}

// End marks a session ended. Ending an already ended session is a no-op.
func (s *SessionService) End(ctx context.Context, hostID, id string) (*session.Session, error) {
	sess, err := s.hosted(ctx, hostID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == session.StatusEnded {
		return sess, nil
	}

	now := time.Now().UTC()
	sess.Status = session.StatusEnded
	sess.EndedAt = &now
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SessionsEnded.Add(ctx, 1)
		s.metrics.SessionDuration.Record(ctx, now.Sub(sess.StartedAt).Seconds())
	}

	s.notify(ctx, sess.ID, event.SessionEnded, map[string]any{
		"ended_at": now.Format(time.RFC3339),
	})
	return sess, nil
}

// Get returns a session visible to the caller: its host, or a student
// enrolled in its section.
func (s *SessionService) Get(ctx context.Context, userID, id string) (*session.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListBySection lists a section's sessions for an enrolled student or
// the owning instructor.
func (s *SessionService) ListBySection(ctx context.Context, userID, sectionID string) ([]session.Session, error) {
	member, err := s.enrollments.IsMember(ctx, sectionID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		if _, err := s.sections.Get(ctx, userID, sectionID); err != nil {
			return nil, err
		}
	}
	return s.store.ListSessionsBySection(ctx, sectionID)
}

// UpdatePanels changes the panel layout of a live session and notifies
// participants.
func (s *SessionService) UpdatePanels(ctx context.Context, hostID, id string, panels session.PanelConfig) (*session.Session, error) {
	if err := panels.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	sess, err := s.hosted(ctx, hostID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == session.StatusEnded {
		return nil, fmt.Errorf("%w: session has ended", domain.ErrValidation)
	}

	sess.Panels = panels
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("update panels: %w", err)
	}

	s.notify(ctx, sess.ID, event.PanelChanged, map[string]any{
		"layout":          string(panels.Layout),
		"editor_open":     panels.EditorOpen,
		"console_open":    panels.ConsoleOpen,
		"instructor_feed": panels.InstructorFeed,
	})
	return sess, nil
}

// AppendSnapshot records an editor snapshot and broadcasts the update.
// Only the host writes to the shared editor.
func (s *SessionService) AppendSnapshot(ctx context.Context, hostID, id string, req session.SnapshotRequest) (*session.Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	sess, err := s.hosted(ctx, hostID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == session.StatusEnded {
		return nil, fmt.Errorf("%w: session has ended", domain.ErrValidation)
	}

	snap := &session.Snapshot{
		SessionID: sess.ID,
		AuthorID:  hostID,
		Content:   req.Content,
	}
	if _, err := s.store.AppendSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SnapshotsTaken.Add(ctx, 1)
		s.metrics.SnapshotBytes.Record(ctx, int64(len(snap.Content)))
	}

	s.notify(ctx, sess.ID, event.EditorUpdate, map[string]any{
		"seq":     snap.Seq,
		"content": snap.Content,
	})
	return snap, nil
}

// LatestSnapshot returns the most recent editor snapshot for a session
// the caller may see. Late joiners use it to catch up.
func (s *SessionService) LatestSnapshot(ctx context.Context, userID, id string) (*session.Snapshot, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.store.LatestSnapshot(ctx, id)
}

// NotifyPresence broadcasts a participant joining or leaving a session.
func (s *SessionService) NotifyPresence(ctx context.Context, sessionID, userID, eventType string) {
	s.notify(ctx, sessionID, eventType, map[string]any{"user_id": userID})
}

// Authorize checks that a user may attach to a session's realtime channel.
func (s *SessionService) Authorize(ctx context.Context, userID, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.authorize(ctx, userID, sess)
}

// notify broadcasts an event on the session channel and mirrors it to
// the durable stream. Both paths are best-effort: the state change the
// event describes has already been committed.
func (s *SessionService) notify(ctx context.Context, sessionID, eventType string, payload map[string]any) {
	channel := event.SessionChannel(sessionID)

	spanCtx, span := cpotel.StartBroadcastSpan(ctx, channel, eventType)
	err := s.breaker.Execute(spanCtx, func(ctx context.Context) error {
		return s.sender.Broadcast(ctx, channel, eventType, payload)
	})
	span.End()
	if err != nil {
		slog.Warn("session broadcast failed", "session_id", sessionID, "event", eventType, "error", err)
	}
	if s.metrics != nil {
		if err != nil {
			s.metrics.BroadcastsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
		} else {
			s.metrics.BroadcastsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
		}
	}

	env := event.Envelope{
		SessionID: sessionID,
		Type:      eventType,
		Payload:   payload,
		At:        time.Now().UTC(),
	}
	if err := s.events.PublishEvent(ctx, env); err != nil {
		slog.Warn("session event mirror failed", "session_id", sessionID, "event", eventType, "error", err)
	}
}

func (s *SessionService) hosted(ctx context.Context, hostID, id string) (*session.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.HostID != hostID {
		return nil, fmt.Errorf("%w: session %s", domain.ErrForbidden, id)
	}
	return sess, nil
}

func (s *SessionService) authorize(ctx context.Context, userID string, sess *session.Session) error {
	if sess.HostID == userID {
		return nil
	}
	member, err := s.enrollments.IsMember(ctx, sess.SectionID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: session %s", domain.ErrForbidden, sess.ID)
	}
	return nil
}
