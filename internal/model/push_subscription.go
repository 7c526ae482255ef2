package model

import "time"

// PushSubscription holds a student's browser push subscription. A student may
// subscribe from several browsers; status-change notifications fan out to all
// of them.
type PushSubscription struct {
	Endpoint     string    `gorm:"primaryKey"`
	P256DH       string    `gorm:"column:p256dh;not null"`
	Auth         string    `gorm:"not null"`
	StudentEmail string    `gorm:"size:254;not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
}
