package services

import (
	"fmt"
	"stayhaven-server/models"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateFromIntent creates at most one PENDING booking for the given intent.
// The unique index on intent_id plus ON CONFLICT DO NOTHING makes the
// operation idempotent: a resubmission returns the already-created booking
// instead of inserting a duplicate. The returned bool reports whether a new
// row was created by this call.
func CreateFromIntent(db *gorm.DB, intent *BookingIntent, quote PriceQuote, hostID uint) (*models.Booking, bool, error) {
	booking := models.Booking{
		IntentID:        intent.ID,
		SubjectType:     intent.SubjectType,
		SubjectID:       intent.SubjectID,
		HostID:          hostID,
		RequesterID:     intent.RequesterID,
		GuestCount:      intent.GuestCount,
		TotalPriceMinor: quote.TotalMinor,
		Currency:        quote.Currency,
		Status:          models.BookingStatusPending,
		StatusChangedAt: time.Now(),
		Note:            intent.Note,
	}
	if intent.SubjectType == models.SubjectTypeStay {
		checkIn, checkOut := intent.CheckIn, intent.CheckOut
		booking.CheckIn = &checkIn
		booking.CheckOut = &checkOut
	} else {
		date := intent.Date
		booking.Date = &date
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "intent_id"}},
		DoNothing: true,
	}).Create(&booking)
	if res.Error != nil {
		return nil, false, res.Error
	}

	created := res.RowsAffected == 1
	if !created {
		if err := db.Where("intent_id = ?", intent.ID).First(&booking).Error; err != nil {
			return nil, false, err
		}
	}
	return &booking, created, nil
}

// TransitionStatus applies a compare-and-set status change: the update only
// fires while the booking still has the expected status. Both the payment
// webhook and the host action funnel through this, so whichever lands first
// wins and the other observes zero rows affected. Returns whether this call
// performed the transition.
func TransitionStatus(db *gorm.DB, bookingID uint, from, to string) (bool, error) {
	res := db.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, from).
		Updates(map[string]interface{}{
			"status":            to,
			"status_changed_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AttachPaymentReference stores the provider reference and authorization URL
// on a still-pending booking. Never touches price or status.
func AttachPaymentReference(db *gorm.DB, bookingID uint, reference, authorizationURL string) error {
	return db.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusPending).
		Updates(map[string]interface{}{
			"payment_reference": reference,
			"authorization_url": authorizationURL,
		}).Error
}

// CountStayConflicts counts confirmed bookings overlapping the given range.
func CountStayConflicts(db *gorm.DB, propertyID uint, checkIn, checkOut time.Time) (int64, error) {
	var conflicts int64
	err := db.Model(&models.Booking{}).
		Where("subject_type = ? AND subject_id = ? AND status = ? AND check_in < ? AND check_out > ?",
			models.SubjectTypeStay, propertyID, models.BookingStatusConfirmed, checkOut, checkIn).
		Count(&conflicts).Error
	return conflicts, err
}

// CountActivityParticipants sums non-cancelled head counts for a date.
func CountActivityParticipants(db *gorm.DB, activityID uint, date time.Time) (int64, error) {
	var total int64
	err := db.Model(&models.Booking{}).
		Where("subject_type = ? AND subject_id = ? AND date = ? AND status != ?",
			models.SubjectTypeActivity, activityID, date, models.BookingStatusCancelled).
		Select("COALESCE(SUM(guest_count), 0)").
		Scan(&total).Error
	return total, err
}

// CancellationDecision is the outcome of applying a cancellation policy.
type CancellationDecision struct {
	Allowed     bool
	RefundMinor int64
	Reason      string
}

// DecideCancellation applies the subject's cancellation policy to a booking.
// Only PENDING bookings are cancellable; CONFIRMED and CANCELLED are terminal
// and no cancellation path moves them. The policy window sizes the refund of
// whatever a racing payment may have captured before reconciliation.
func DecideCancellation(booking *models.Booking, policy string, now time.Time) CancellationDecision {
	switch booking.Status {
	case models.BookingStatusCancelled:
		return CancellationDecision{Allowed: false, Reason: "booking is already cancelled"}
	case models.BookingStatusConfirmed:
		return CancellationDecision{Allowed: false, Reason: "confirmed bookings cannot be cancelled"}
	}

	var start time.Time
	switch {
	case booking.CheckIn != nil:
		start = *booking.CheckIn
	case booking.Date != nil:
		start = *booking.Date
	default:
		return CancellationDecision{Allowed: true, RefundMinor: booking.TotalPriceMinor, Reason: "full refund"}
	}

	daysUntilStart := int(start.Sub(now).Hours() / 24)

	switch policy {
	case "moderate":
		if daysUntilStart >= 5 {
			return CancellationDecision{Allowed: true, RefundMinor: booking.TotalPriceMinor, Reason: "full refund - cancelled 5+ days before start"}
		}
		if daysUntilStart >= 1 {
			return CancellationDecision{Allowed: true, RefundMinor: booking.TotalPriceMinor / 2, Reason: "50% refund - cancelled 1-4 days before start"}
		}
		return CancellationDecision{Allowed: true, Reason: "no refund - cancelled less than 24 hours before start"}

	case "strict":
		if daysUntilStart >= 7 {
			return CancellationDecision{Allowed: true, RefundMinor: booking.TotalPriceMinor / 2, Reason: "50% refund - cancelled 7+ days before start"}
		}
		return CancellationDecision{Allowed: true, Reason: "no refund - cancelled less than 7 days before start"}

	default: // flexible
		if daysUntilStart >= 1 {
			return CancellationDecision{Allowed: true, RefundMinor: booking.TotalPriceMinor, Reason: "full refund - cancelled 24+ hours before start"}
		}
		return CancellationDecision{Allowed: true, Reason: "no refund - cancelled less than 24 hours before start"}
	}
}

// ReconcilePayment applies a verified provider outcome to a booking.
// Success confirms a pending booking; failure cancels it. Replayed outcomes
// for already-terminal bookings report transitioned=false with no error, so
// duplicate webhook deliveries are no-ops.
func ReconcilePayment(db *gorm.DB, booking *models.Booking, success bool) (bool, error) {
	target := models.BookingStatusConfirmed
	if !success {
		target = models.BookingStatusCancelled
	}
	transitioned, err := TransitionStatus(db, booking.ID, models.BookingStatusPending, target)
	if err != nil {
		return false, fmt.Errorf("reconcile payment for booking %d: %w", booking.ID, err)
	}
	if transitioned {
		booking.Status = target
	}
	return transitioned, nil
}
