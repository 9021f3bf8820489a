// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrForbidden indicates that the current user
// is not authorized to operate on a streampass owned by someone else,
// while ErrConflict signals that an operation cannot proceed because of
// conflicting state (e.g. a playback session already open on another
// device).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot be performed because
// of conflicting state, such as beginning a playback session while
// another one is still active. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")
