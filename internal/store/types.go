package store

import (
	"time"

	"event-signup-backend/internal/model"
)

// CreateEventParams carries the validated fields for a new event.
type CreateEventParams struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	Capacity    int
}

// RegisterOutcome reports the result of a committed registration. Both the
// confirmed and the waitlisted case are successes; the caller distinguishes
// them via Registration.Status.
type RegisterOutcome struct {
	Registration model.Registration
	Event        model.Event
	// Reactivated is true when a previously cancelled record was revived
	// instead of a new row being created.
	Reactivated bool
}

// CancelOutcome reports the result of a committed cancellation.
type CancelOutcome struct {
	Registration model.Registration
	Event        model.Event
	// Promoted is the waitlisted registration that took over the freed seat,
	// nil when no promotion happened.
	Promoted *model.Registration
	// AlreadyCancelled is true when the record was cancelled before the call;
	// the operation still succeeds and mutates nothing.
	AlreadyCancelled bool
}

// StatusCount is one row of the per-event reporting query.
type StatusCount struct {
	Status model.RegistrationStatus `json:"status"`
	Count  int64                    `json:"count"`
}
