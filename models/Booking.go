package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubjectTypeStay     = "stay"
	SubjectTypeActivity = "activity"
)

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking is the authoritative record of a guest's reservation of a stay or
// an activity. Exactly one row exists per intent id (unique index), which is
// what makes "create booking + start payment" safe to resubmit. Status only
// ever moves pending -> confirmed or pending -> cancelled; both writers (the
// payment webhook and the host action) go through a compare-and-set keyed on
// the pending status, never a blind save.
type Booking struct {
	gorm.Model
	IntentID    string `json:"intentID" gorm:"size:64;uniqueIndex;not null"`
	SubjectType string `json:"subjectType" gorm:"size:16;not null;index"` // stay, activity
	SubjectID   uint   `json:"subjectID" gorm:"not null;index"`
	HostID      uint   `json:"hostID" gorm:"not null;index"`
	RequesterID uint   `json:"requesterID" gorm:"not null;index"`

	// Stay bookings use CheckIn/CheckOut; activity bookings use Date.
	CheckIn  *time.Time `json:"checkIn,omitempty"`
	CheckOut *time.Time `json:"checkOut,omitempty"`
	Date     *time.Time `json:"date,omitempty"`

	GuestCount int `json:"guestCount" gorm:"not null"`

	// Immutable once set; recomputed server-side from canonical pricing,
	// never trusted from the client.
	TotalPriceMinor int64  `json:"totalPriceMinor" gorm:"not null"`
	Currency        string `json:"currency" gorm:"size:3"`

	Status          string    `json:"status" gorm:"size:16;default:'pending';index"`
	StatusChangedAt time.Time `json:"statusChangedAt"`

	PaymentReference string `json:"paymentReference" gorm:"size:128;index"`
	AuthorizationURL string `json:"authorizationURL"`

	Note string `json:"note"`

	// SubjectID points at a property or an activity depending on SubjectType,
	// so it cannot carry a foreign key to either table; views resolve the
	// subject with an explicit query.
	Guest *User `json:"guest,omitempty" gorm:"foreignKey:RequesterID"`
	Host  *User `json:"host,omitempty" gorm:"foreignKey:HostID"`
}
