package store

import "errors"

// ErrNotFound is returned when a referenced event or registration does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRegistered is returned when a student already holds an active
// (confirmed or waitlisted) registration for the event.
var ErrAlreadyRegistered = errors.New("student already registered for this event")

// ErrForbidden is returned when a student tries to cancel a registration they
// do not own.
var ErrForbidden = errors.New("registration belongs to another student")

// ErrLockTimeout is returned when the per-event lock could not be acquired
// within the configured bound. The caller may retry with backoff.
var ErrLockTimeout = errors.New("timed out waiting for event lock")
