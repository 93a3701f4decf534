// Package enrollment defines section membership.
package enrollment

import (
	"errors"
	"time"
)

// Enrollment links a user to a section.
type Enrollment struct {
	ID        string    `json:"id"`
	SectionID string    `json:"section_id"`
	UserID    string    `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// JoinRequest is the input for joining a section by code.
type JoinRequest struct {
	Code string `json:"code"`
}

// Validate checks the JoinRequest fields.
func (r *JoinRequest) Validate() error {
	if r.Code == "" {
		return errors.New("code is required")
	}
	return nil
}

// RosterEntry is one row of a section roster.
type RosterEntry struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}
