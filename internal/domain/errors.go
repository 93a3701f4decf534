// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation clashed with existing state,
// such as a duplicate join code or a concurrent modification.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the request failed input validation.
var ErrValidation = errors.New("validation")

// ErrForbidden indicates the authenticated user may not perform the operation.
var ErrForbidden = errors.New("forbidden")
