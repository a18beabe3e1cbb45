package services

import (
	"fmt"
	"stayhaven-server/models"
	"time"

	"github.com/google/uuid"
)

// BookingIntent is a validated, not-yet-persisted description of a desired
// booking. Its ID is the idempotency key for booking creation: resubmitting
// the same intent can never produce a second booking. Intents are owned by
// the requesting session and are discarded once a booking is materialized.
type BookingIntent struct {
	ID          string
	SubjectType string // models.SubjectTypeStay or models.SubjectTypeActivity
	SubjectID   uint
	RequesterID uint
	CheckIn     time.Time // stays only
	CheckOut    time.Time // stays only
	Date        time.Time // activities only
	GuestCount  int
	Note        string
	CreatedAt   time.Time
}

// IntentInput carries the raw booking request fields before validation.
// IntentID may be supplied by the client (so retries reuse the same key)
// or left empty to have one generated here.
type IntentInput struct {
	IntentID    string
	SubjectType string
	SubjectID   uint
	RequesterID uint
	CheckIn     time.Time
	CheckOut    time.Time
	Date        time.Time
	GuestCount  int
	Note        string
}

// BuildIntent validates and packages a booking request. Pure construction,
// no network or database calls. Zero-night stays are rejected here rather
// than clamped by pricing.
func BuildIntent(in IntentInput) (*BookingIntent, error) {
	if in.RequesterID == 0 {
		return nil, ErrNotAuthenticated
	}
	if in.SubjectID == 0 {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidRange)
	}
	if in.GuestCount < 1 {
		return nil, fmt.Errorf("%w: guest count must be at least 1", ErrInvalidRange)
	}

	switch in.SubjectType {
	case models.SubjectTypeStay:
		if in.CheckIn.IsZero() || in.CheckOut.IsZero() {
			return nil, fmt.Errorf("%w: check-in and check-out are required", ErrInvalidRange)
		}
		if !in.CheckIn.Before(in.CheckOut) {
			return nil, fmt.Errorf("%w: check-out must be after check-in", ErrInvalidRange)
		}
	case models.SubjectTypeActivity:
		if in.Date.IsZero() {
			return nil, fmt.Errorf("%w: a date is required", ErrInvalidRange)
		}
		if in.Date.Before(time.Now().Truncate(24 * time.Hour)) {
			return nil, fmt.Errorf("%w: cannot book activities in the past", ErrInvalidRange)
		}
	default:
		return nil, fmt.Errorf("%w: unknown subject type %q", ErrInvalidRange, in.SubjectType)
	}

	id := in.IntentID
	if id == "" {
		id = uuid.New().String()
	}

	return &BookingIntent{
		ID:          id,
		SubjectType: in.SubjectType,
		SubjectID:   in.SubjectID,
		RequesterID: in.RequesterID,
		CheckIn:     in.CheckIn,
		CheckOut:    in.CheckOut,
		Date:        in.Date,
		GuestCount:  in.GuestCount,
		Note:        in.Note,
		CreatedAt:   time.Now(),
	}, nil
}
