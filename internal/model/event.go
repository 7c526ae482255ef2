package model

import "time"

// Event represents a capacity-limited event students can sign up for.
//
// ConfirmedCount is the authoritative number of confirmed registrations and
// must always equal the count of Registration rows in the confirmed state.
// It is only ever written inside the store's per-event locked transaction.
type Event struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Title          string    `gorm:"size:256;not null" json:"title"`
	Description    string    `gorm:"size:2048" json:"description"`
	Location       string    `gorm:"size:256" json:"location"`
	StartsAt       time.Time `json:"startsAt"`
	Capacity       int       `gorm:"not null" json:"capacity"`
	ConfirmedCount int       `gorm:"not null;default:0" json:"confirmedCount"`
	CreatedAt      time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"not null" json:"updatedAt"`
}
