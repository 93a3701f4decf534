// Package class defines classes and their sections. A class is owned by an
// instructor; sections are the units students join via a short code.
package class

import (
	"errors"
	"time"
)

// Class is a course taught by an instructor.
type Class struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest is the input for creating a class.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate checks the CreateRequest fields.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > 200 {
		return errors.New("name too long (max 200 chars)")
	}
	if len(r.Description) > 2000 {
		return errors.New("description too long (max 2000 chars)")
	}
	return nil
}

// UpdateRequest is the input for updating a class.
type UpdateRequest struct {
	Name        string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Section is a cohort within a class, joined via its code.
type Section struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Name      string    `json:"name"`
	JoinCode  string    `json:"join_code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateSectionRequest is the input for creating a section.
type CreateSectionRequest struct {
	Name string `json:"name"`
}

// Validate checks the CreateSectionRequest fields.
func (r *CreateSectionRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > 200 {
		return errors.New("name too long (max 200 chars)")
	}
	return nil
}

// UpdateSectionRequest is the input for updating a section.
type UpdateSectionRequest struct {
	Name   string `json:"name,omitempty"`
	Active *bool  `json:"active,omitempty"`
}
