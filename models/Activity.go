package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity is a bookable per-person experience (tour, class, outing).
type Activity struct {
	gorm.Model
	HostID uint `json:"hostID" gorm:"not null;index"`
	Host   User `json:"host" gorm:"foreignKey:HostID"`

	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	City        string `json:"city" gorm:"index"`
	Duration    int    `json:"duration"` // minutes

	PricePerPersonMinor int64  `json:"pricePerPersonMinor" gorm:"not null"`
	Currency            string `json:"currency" gorm:"size:3;default:'KES'"`
	ServiceFeePercent   int    `json:"serviceFeePercent" gorm:"default:10"`

	Capacity int `json:"capacity" gorm:"default:10"`

	Photos datatypes.JSON `json:"photos"`
	Status string         `json:"status" gorm:"default:'published';index"` // draft, published, suspended
}
