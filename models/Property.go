package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property is a bookable stay listing. Prices are stored in minor currency
// units (cents); the fee rate is a whole percentage applied once per booking.
type Property struct {
	gorm.Model
	HostID uint `json:"hostID" gorm:"not null;index"`
	Host   User `json:"host" gorm:"foreignKey:HostID"`

	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	City        string `json:"city" gorm:"index"`
	Country     string `json:"country"`

	NightlyPriceMinor int64  `json:"nightlyPriceMinor" gorm:"not null"`
	Currency          string `json:"currency" gorm:"size:3;default:'KES'"`
	ServiceFeePercent int    `json:"serviceFeePercent" gorm:"default:10"`

	MaxGuests int `json:"maxGuests" gorm:"default:16"`

	// When set, a PENDING booking also waits for the host's accept/decline.
	// Payment settlement remains authoritative if both race.
	ApprovalRequired   bool   `json:"approvalRequired" gorm:"default:false"`
	CancellationPolicy string `json:"cancellationPolicy" gorm:"default:'flexible'"` // flexible, moderate, strict

	Photos datatypes.JSON `json:"photos"`
	Status string         `json:"status" gorm:"default:'published';index"` // draft, published, suspended
}
