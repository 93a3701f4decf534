// Package event defines the realtime event vocabulary broadcast on session
// channels and mirrored to the durable event stream.
package event

import "time"

// Event type names carried in the broadcast envelope.
const (
	SessionStarted    = "session.started"
	SessionEnded      = "session.ended"
	EditorUpdate      = "editor.update"
	PanelChanged      = "panel.changed"
	ParticipantJoined = "participant.joined"
	ParticipantLeft   = "participant.left"
)

// SessionChannel returns the broadcast channel name for a session.
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// Envelope is the durable record of a session event.
type Envelope struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	At        time.Time      `json:"at"`
}
