// Package session defines live coding sessions and their editor state.
package session

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending Status = "pending"
	StatusLive    Status = "live"
	StatusEnded   Status = "ended"
)

// Layout is the arrangement of editor panels presented to participants.
type Layout string

const (
	LayoutSplit      Layout = "split"
	LayoutEditorOnly Layout = "editor_only"
	LayoutStacked    Layout = "stacked"
)

// ValidLayouts is the set of accepted panel layouts.
var ValidLayouts = map[Layout]bool{
	LayoutSplit:      true,
	LayoutEditorOnly: true,
	LayoutStacked:    true,
}

// PanelConfig controls which panels participants see and how they are arranged.
type PanelConfig struct {
	Layout         Layout `json:"layout"`
	EditorOpen     bool   `json:"editor_open"`
	ConsoleOpen    bool   `json:"console_open"`
	InstructorFeed bool   `json:"instructor_feed"`
}

// DefaultPanels is the panel configuration applied to new sessions.
func DefaultPanels() PanelConfig {
	return PanelConfig{
		Layout:         LayoutSplit,
		EditorOpen:     true,
		ConsoleOpen:    true,
		InstructorFeed: true,
	}
}

// Validate checks the panel configuration.
func (p *PanelConfig) Validate() error {
	if !ValidLayouts[p.Layout] {
		return errors.New("invalid layout: must be split, editor_only, or stacked")
	}
	return nil
}

// Session is a live coding session hosted by an instructor for a section.
type Session struct {
	ID        string      `json:"id"`
	SectionID string      `json:"section_id"`
	HostID    string      `json:"host_id"`
	Title     string      `json:"title"`
	Language  string      `json:"language"`
	Status    Status      `json:"status"`
	Panels    PanelConfig `json:"panels"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   *time.Time  `json:"ended_at,omitempty"`
}

// CreateRequest is the input for starting a session.
type CreateRequest struct {
	Title    string `json:"title"`
	Language string `json:"language"`
}

// Validate checks the CreateRequest fields.
func (r *CreateRequest) Validate() error {
	if r.Title == "" {
		return errors.New("title is required")
	}
	if len(r.Title) > 200 {
		return errors.New("title too long (max 200 chars)")
	}
	if r.Language == "" {
		return errors.New("language is required")
	}
	return nil
}

// Snapshot is a checkpoint of the shared editor content.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	TakenAt   time.Time `json:"taken_at"`
}

// SnapshotRequest is the input for appending an editor snapshot.
type SnapshotRequest struct {
	Content string `json:"content"`
}

// Validate checks the SnapshotRequest fields.
func (r *SnapshotRequest) Validate() error {
	if len(r.Content) > 1<<20 {
		return errors.New("content too large (max 1MiB)")
	}
	return nil
}
