package model

import "time"

// RegistrationStatus is the closed set of states a registration can be in.
type RegistrationStatus string

const (
	StatusConfirmed  RegistrationStatus = "confirmed"
	StatusWaitlisted RegistrationStatus = "waitlisted"
	StatusCancelled  RegistrationStatus = "cancelled"
)

// Registration is a student's sign-up record for one event.
//
// The auto-increment ID doubles as the waitlist tie-break when two records
// share the same CreatedAt timestamp. The partial unique index guarantees at
// most one non-cancelled record per (event, student) pair even if the
// application-level pre-check is raced past; a cancelled record is
// reactivated in place on re-registration, so a pair keeps a single
// historical row.
type Registration struct {
	ID           int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID      string             `gorm:"size:36;not null;uniqueIndex:uniq_active_registration,where:status <> 'cancelled';index:idx_event_status_created,priority:1" json:"eventId"`
	StudentEmail string             `gorm:"size:254;not null;uniqueIndex:uniq_active_registration,where:status <> 'cancelled'" json:"studentEmail"`
	Status       RegistrationStatus `gorm:"type:varchar(20);not null;index:idx_event_status_created,priority:2" json:"status"`
	CreatedAt    time.Time          `gorm:"not null;index:idx_event_status_created,priority:3" json:"createdAt"`
	UpdatedAt    time.Time          `gorm:"not null" json:"updatedAt"`

	// Associations
	Event Event `gorm:"constraint:OnDelete:CASCADE" json:"event"`
}
