package models

import (
	"time"
)

// PaymentEvent is an append-only trail of provider interactions and booking
// status transitions: who (or which webhook) did what to which booking.
type PaymentEvent struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	BookingID   uint      `json:"bookingID" gorm:"index;not null"`
	Reference   string    `json:"reference" gorm:"size:128;index"`
	Kind        string    `json:"kind" gorm:"size:64;index"` // initiated, charge.success, charge.failed, amount_mismatch, replayed, host_confirmed, host_declined, guest_cancelled
	ActorUserID uint      `json:"actorUserID" gorm:"index"`  // 0 for provider webhooks
	PayloadJSON string    `json:"payloadJSON" gorm:"type:text"`
	IPAddress   string    `json:"ipAddress" gorm:"size:64"`
	CreatedAt   time.Time `json:"createdAt"`
}
