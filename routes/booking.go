package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"stayhaven-server/models"
	"stayhaven-server/services"
	"stayhaven-server/storage"
	"stayhaven-server/utils"
	"time"

	"github.com/kataras/iris/v12"
)

type InitiateBookingInput struct {
	// Optional client-generated idempotency key; retries should resend it.
	IntentID    string    `json:"intentID"`
	SubjectType string    `json:"subjectType" validate:"required,oneof=stay activity"`
	SubjectID   uint      `json:"subjectID" validate:"required"`
	CheckIn     time.Time `json:"checkIn"`
	CheckOut    time.Time `json:"checkOut"`
	Date        string    `json:"date"` // activities, YYYY-MM-DD
	GuestCount  int       `json:"guestCount" validate:"required,gte=1,lte=16"`
	Note        string    `json:"note"`
	ReturnURL   string    `json:"returnURL"`
}

// InitiateBooking validates the intent, reprices it from canonical subject
// pricing, creates at most one PENDING booking for the intent id, registers
// the charge with the payment provider and returns the redirect target.
// Resubmitting the same intent id returns the same booking and, while it is
// still pending, the same authorization URL.
func InitiateBooking(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input InitiateBookingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var activityDate time.Time
	if input.SubjectType == models.SubjectTypeActivity && input.Date != "" {
		parsed, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid date format", ctx)
			return
		}
		activityDate = parsed
	}

	intent, err := services.BuildIntent(services.IntentInput{
		IntentID:    input.IntentID,
		SubjectType: input.SubjectType,
		SubjectID:   input.SubjectID,
		RequesterID: userID,
		CheckIn:     input.CheckIn,
		CheckOut:    input.CheckOut,
		Date:        activityDate,
		GuestCount:  input.GuestCount,
		Note:        input.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotAuthenticated):
			utils.CreateError(iris.StatusUnauthorized, "Unauthorized", err.Error(), ctx)
		default:
			utils.CreateError(iris.StatusBadRequest, "Validation Error", err.Error(), ctx)
		}
		return
	}

	// Fast path for resubmissions: if the intent id already has a booking,
	// reuse it instead of re-checking availability (a confirmed booking
	// would otherwise collide with its own dates). A pending booking whose
	// payment was never registered falls through to initialize below, with
	// its already-fixed price.
	var booking *models.Booking
	var created bool
	var hostID uint
	var subjectTitle string

	var existing models.Booking
	if lookupErr := storage.DB.Where("intent_id = ?", intent.ID).First(&existing).Error; lookupErr == nil {
		if done := respondDuplicateInitiation(ctx, &existing); done {
			return
		}
		booking = &existing
	} else {
		quote, quotedHostID, title, err := priceIntent(ctx, intent)
		if err != nil {
			return // priceIntent already wrote the response
		}
		hostID, subjectTitle = quotedHostID, title

		booking, created, err = services.CreateFromIntent(storage.DB, intent, quote, hostID)
		if err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}

		if !created {
			// Lost a race with a concurrent submission of the same intent.
			// Never create a second booking or start a second charge.
			if done := respondDuplicateInitiation(ctx, booking); done {
				return
			}
		}
	}

	var guest models.User
	if err := storage.DB.First(&guest, userID).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	client := services.NewPaystackClient()
	init, err := client.InitializeTransaction(services.InitializeRequest{
		Email:       guest.Email,
		AmountMinor: booking.TotalPriceMinor,
		Currency:    booking.Currency,
		Reference:   booking.IntentID,
		CallbackURL: input.ReturnURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProviderRejected):
			// Terminal for this attempt: cancel the pending booking so the
			// guest retries with a fresh intent after re-validating.
			if _, cancelErr := services.TransitionStatus(storage.DB, booking.ID, models.BookingStatusPending, models.BookingStatusCancelled); cancelErr != nil {
				log.Printf("cancel booking %d after provider rejection: %v", booking.ID, cancelErr)
			}
			utils.RecordPaymentEvent(ctx, booking.ID, booking.IntentID, "provider_rejected", iris.Map{"error": err.Error()})
			utils.CreateError(iris.StatusPaymentRequired, "Payment Rejected", err.Error(), ctx)
		default:
			// Retryable: the booking stays pending and the same intent id is
			// safe to resubmit without double-booking.
			utils.CreateError(iris.StatusBadGateway, "Payment Provider Unreachable", "Could not reach the payment provider, please retry", ctx)
		}
		return
	}

	if err := services.AttachPaymentReference(storage.DB, booking.ID, init.Reference, init.AuthorizationURL); err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	booking.PaymentReference = init.Reference
	booking.AuthorizationURL = init.AuthorizationURL

	utils.RecordPaymentEvent(ctx, booking.ID, init.Reference, "initiated", iris.Map{
		"amount":   booking.TotalPriceMinor,
		"currency": booking.Currency,
	})

	if created {
		notification := models.Notification{
			UserID:  hostID,
			Type:    "booking_request",
			Title:   "New Booking Request",
			Message: fmt.Sprintf("You have a new booking request for %s", subjectTitle),
			RefType: "booking",
			RefID:   booking.ID,
		}
		storage.DB.Create(&notification)

		guestName := fmt.Sprintf("%s %s", guest.FirstName, guest.LastName)
		notificationService := services.NewNotificationService()
		go notificationService.SendBookingRequestToHost(booking.ID, booking.SubjectID, hostID, userID, guestName, subjectTitle)
	}

	ctx.JSON(iris.Map{
		"booking":          booking,
		"authorizationUrl": init.AuthorizationURL,
		"reference":        init.Reference,
	})
}

// respondDuplicateInitiation answers a resubmitted intent from the existing
// booking. Returns false for a pending booking with no authorization URL,
// which means the payment registration still needs to happen.
func respondDuplicateInitiation(ctx iris.Context, booking *models.Booking) bool {
	if booking.Status != models.BookingStatusPending {
		ctx.JSON(iris.Map{
			"booking":   booking,
			"reference": booking.PaymentReference,
			"message":   fmt.Sprintf("booking already %s", booking.Status),
		})
		return true
	}
	if booking.AuthorizationURL != "" {
		ctx.JSON(iris.Map{
			"booking":          booking,
			"authorizationUrl": booking.AuthorizationURL,
			"reference":        booking.PaymentReference,
		})
		return true
	}
	return false
}

// priceIntent resolves the subject, checks availability/capacity and returns
// the authoritative quote. Writes the error response itself on failure.
func priceIntent(ctx iris.Context, intent *services.BookingIntent) (services.PriceQuote, uint, string, error) {
	if intent.SubjectType == models.SubjectTypeStay {
		var property models.Property
		if err := storage.DB.Where("id = ? AND status = ?", intent.SubjectID, "published").First(&property).Error; err != nil {
			utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
			return services.PriceQuote{}, 0, "", err
		}
		if intent.GuestCount > property.MaxGuests {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Guest count exceeds property capacity", ctx)
			return services.PriceQuote{}, 0, "", services.ErrInvalidRange
		}

		conflicts, err := services.CountStayConflicts(storage.DB, property.ID, intent.CheckIn, intent.CheckOut)
		if err != nil {
			utils.CreateInternalServerError(ctx)
			return services.PriceQuote{}, 0, "", err
		}
		if conflicts > 0 {
			utils.CreateError(iris.StatusConflict, "Unavailable", "Selected dates are not available", ctx)
			return services.PriceQuote{}, 0, "", services.ErrSubjectUnavailable
		}

		quote, err := services.ComputePrice(property.NightlyPriceMinor, services.Nights(intent.CheckIn, intent.CheckOut), property.ServiceFeePercent)
		if err != nil {
			utils.CreateInternalServerError(ctx)
			return services.PriceQuote{}, 0, "", err
		}
		quote.Currency = property.Currency
		return quote, property.HostID, property.Title, nil
	}

	var activity models.Activity
	if err := storage.DB.Where("id = ? AND status = ?", intent.SubjectID, "published").First(&activity).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Activity not found", ctx)
		return services.PriceQuote{}, 0, "", err
	}

	booked, err := services.CountActivityParticipants(storage.DB, activity.ID, intent.Date)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return services.PriceQuote{}, 0, "", err
	}
	if booked+int64(intent.GuestCount) > int64(activity.Capacity) {
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{
			"message":        "Not enough spots available for this date",
			"capacity":       activity.Capacity,
			"availableSpots": int64(activity.Capacity) - booked,
		})
		return services.PriceQuote{}, 0, "", services.ErrSubjectUnavailable
	}

	quote, err := services.ComputePrice(activity.PricePerPersonMinor, intent.GuestCount, activity.ServiceFeePercent)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return services.PriceQuote{}, 0, "", err
	}
	quote.Currency = activity.Currency
	return quote, activity.HostID, activity.Title, nil
}

// PaymentWebhook reconciles a booking with the provider's outcome. The
// signature is verified over the raw body before anything else; replayed
// deliveries and already-settled bookings are acknowledged without effect.
func PaymentWebhook(ctx iris.Context) {
	body, err := ctx.GetBody()
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		return
	}

	signature := ctx.GetHeader("x-paystack-signature")
	if !services.ValidWebhookSignature(os.Getenv("PAYSTACK_SECRET_KEY"), body, signature) {
		ctx.StatusCode(iris.StatusUnauthorized)
		return
	}

	var event services.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		return
	}

	if event.Event != "charge.success" && event.Event != "charge.failed" {
		ctx.JSON(iris.Map{"ok": true})
		return
	}

	var booking models.Booking
	if err := storage.DB.Where("payment_reference = ? OR intent_id = ?", event.Data.Reference, event.Data.Reference).First(&booking).Error; err != nil {
		// Unknown reference: acknowledge so the provider stops retrying,
		// but keep a trace.
		utils.RecordPaymentEvent(ctx, 0, event.Data.Reference, "unknown_reference", event)
		ctx.JSON(iris.Map{"ok": true})
		return
	}

	success := event.Event == "charge.success"
	if success && (event.Data.AmountMinor != booking.TotalPriceMinor || event.Data.Currency != booking.Currency) {
		// Never confirm on a mismatched charge; leave the booking pending
		// for manual reconciliation.
		utils.RecordPaymentEvent(ctx, booking.ID, event.Data.Reference, "amount_mismatch", event)
		ctx.JSON(iris.Map{"ok": true})
		return
	}

	transitioned, err := services.ReconcilePayment(storage.DB, &booking, success)
	if err != nil {
		// The replay marker is untouched, so the provider's retry of this
		// event gets another chance to settle the booking.
		ctx.StatusCode(iris.StatusInternalServerError)
		return
	}

	if transitioned {
		// Mark the event only once it has taken effect. Earlier duplicates
		// are already harmless: the compare-and-set matches nothing.
		storage.MarkWebhookEvent(ctx.Request().Context(), event.Data.Reference, event.Event)
		utils.RecordPaymentEvent(ctx, booking.ID, event.Data.Reference, event.Event, nil)
		notifyStatusChange(&booking)
	} else {
		utils.RecordPaymentEvent(ctx, booking.ID, event.Data.Reference, "replayed", nil)
	}

	ctx.JSON(iris.Map{"ok": true})
}

// Host action on a pending booking: accept or decline
type UpdateBookingStatusInput struct {
	Status string `json:"status" validate:"required,oneof=confirmed cancelled"`
}

// UpdateBookingStatus lets the host accept or decline a pending booking.
// The transition is a compare-and-set on the pending status: if the payment
// webhook settles the booking first, this is a no-op and the current state
// is returned.
func UpdateBookingStatus(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	var input UpdateBookingStatusInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.Where("id = ? AND host_id = ?", bookingID, userID).First(&booking).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	transitioned, err := services.TransitionStatus(storage.DB, booking.ID, models.BookingStatusPending, input.Status)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	// Reload: either our transition or whoever beat us to it
	storage.DB.First(&booking, booking.ID)

	if transitioned {
		kind := "host_confirmed"
		if input.Status == models.BookingStatusCancelled {
			kind = "host_declined"
		}
		utils.RecordPaymentEvent(ctx, booking.ID, booking.PaymentReference, kind, nil)
		notifyStatusChange(&booking)
	}

	ctx.JSON(iris.Map{
		"booking":      booking,
		"transitioned": transitioned,
	})
}

// CancelBooking handles guest cancellation with policy validation.
type CancelBookingInput struct {
	Reason string `json:"reason"`
}

func CancelBooking(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	var input CancelBookingInput
	ctx.ReadJSON(&input) // body is optional

	var booking models.Booking
	if err := storage.DB.Where("id = ? AND requester_id = ?", bookingID, userID).First(&booking).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	policy := "flexible"
	if booking.SubjectType == models.SubjectTypeStay {
		var property models.Property
		if err := storage.DB.First(&property, booking.SubjectID).Error; err == nil {
			policy = property.CancellationPolicy
		}
	}

	decision := services.DecideCancellation(&booking, policy, time.Now())
	if !decision.Allowed {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{
			"message": "Cannot cancel booking",
			"reason":  decision.Reason,
		})
		return
	}

	// Strictly PENDING -> CANCELLED; if the payment webhook settled the
	// booking in the meantime, this matches nothing.
	transitioned, err := services.TransitionStatus(storage.DB, booking.ID, models.BookingStatusPending, models.BookingStatusCancelled)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if !transitioned {
		// Status moved underneath us; have the guest look at the fresh state.
		storage.DB.First(&booking, booking.ID)
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{
			"message": "Booking status changed, please refresh",
			"booking": booking,
		})
		return
	}

	utils.RecordPaymentEvent(ctx, booking.ID, booking.PaymentReference, "guest_cancelled", iris.Map{
		"reason": input.Reason,
		"refund": decision.RefundMinor,
	})

	notification := models.Notification{
		UserID:  booking.RequesterID,
		Type:    "booking_cancelled",
		Title:   "Booking Cancelled",
		Message: fmt.Sprintf("Your booking has been cancelled. %s", decision.Reason),
		RefType: "booking",
		RefID:   booking.ID,
	}
	storage.DB.Create(&notification)

	ctx.JSON(iris.Map{
		"message":      "Booking cancelled successfully",
		"refundAmount": decision.RefundMinor,
		"currency":     booking.Currency,
		"reason":       decision.Reason,
	})
}

// BookingView is the read-only projection shown to guests and hosts. Reads
// may lag a just-settled payment; clients poll rather than assume instant
// consistency.
type BookingView struct {
	ID               uint       `json:"id"`
	Status           string     `json:"status"`
	SubjectType      string     `json:"subjectType"`
	SubjectID        uint       `json:"subjectID"`
	SubjectTitle     string     `json:"subjectTitle"`
	SubjectCity      string     `json:"subjectCity"`
	CheckIn          *time.Time `json:"checkIn,omitempty"`
	CheckOut         *time.Time `json:"checkOut,omitempty"`
	Date             *time.Time `json:"date,omitempty"`
	GuestCount       int        `json:"guestCount"`
	TotalPriceMinor  int64      `json:"totalPriceMinor"`
	Currency         string     `json:"currency"`
	GuestName        string     `json:"guestName"`
	HostName         string     `json:"hostName"`
	PaymentReference string     `json:"paymentReference,omitempty"`
	StatusChangedAt  time.Time  `json:"statusChangedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func GetBooking(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	var booking models.Booking
	if err := storage.DB.Preload("Guest").Preload("Host").First(&booking, bookingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	if booking.RequesterID != userID && booking.HostID != userID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	ctx.JSON(buildBookingView(&booking))
}

func GetUserBookings(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	if err := storage.DB.Preload("Guest").Preload("Host").
		Where("requester_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	views := make([]BookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, buildBookingView(&bookings[i]))
	}
	ctx.JSON(iris.Map{"data": views})
}

func GetHostBookings(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	if err := storage.DB.Preload("Guest").Preload("Host").
		Where("host_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	views := make([]BookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, buildBookingView(&bookings[i]))
	}
	ctx.JSON(iris.Map{"data": views})
}

func buildBookingView(booking *models.Booking) BookingView {
	view := BookingView{
		ID:               booking.ID,
		Status:           booking.Status,
		SubjectType:      booking.SubjectType,
		SubjectID:        booking.SubjectID,
		CheckIn:          booking.CheckIn,
		CheckOut:         booking.CheckOut,
		Date:             booking.Date,
		GuestCount:       booking.GuestCount,
		TotalPriceMinor:  booking.TotalPriceMinor,
		Currency:         booking.Currency,
		PaymentReference: booking.PaymentReference,
		StatusChangedAt:  booking.StatusChangedAt,
		CreatedAt:        booking.CreatedAt,
	}

	if booking.SubjectType == models.SubjectTypeStay {
		var property models.Property
		if err := storage.DB.First(&property, booking.SubjectID).Error; err == nil {
			view.SubjectTitle = property.Title
			view.SubjectCity = property.City
		}
	} else {
		var activity models.Activity
		if err := storage.DB.First(&activity, booking.SubjectID).Error; err == nil {
			view.SubjectTitle = activity.Title
			view.SubjectCity = activity.City
		}
	}

	if booking.Guest != nil {
		view.GuestName = fmt.Sprintf("%s %s", booking.Guest.FirstName, booking.Guest.LastName)
	}
	if booking.Host != nil {
		view.HostName = fmt.Sprintf("%s %s", booking.Host.FirstName, booking.Host.LastName)
	}
	return view
}

// notifyStatusChange records a notification row and pushes to the guest
// after a successful transition.
func notifyStatusChange(booking *models.Booking) {
	title := "Booking Confirmed"
	notifType := "booking_status"
	message := "Your booking has been confirmed"
	if booking.Status == models.BookingStatusCancelled {
		title = "Booking Cancelled"
		notifType = "booking_cancelled"
		message = "Your booking has been cancelled"
	}

	notification := models.Notification{
		UserID:  booking.RequesterID,
		Type:    notifType,
		Title:   title,
		Message: message,
		RefType: "booking",
		RefID:   booking.ID,
	}
	storage.DB.Create(&notification)

	subjectTitle := ""
	if booking.SubjectType == models.SubjectTypeStay {
		var property models.Property
		if err := storage.DB.First(&property, booking.SubjectID).Error; err == nil {
			subjectTitle = property.Title
		}
	} else {
		var activity models.Activity
		if err := storage.DB.First(&activity, booking.SubjectID).Error; err == nil {
			subjectTitle = activity.Title
		}
	}

	notificationService := services.NewNotificationService()
	if booking.Status == models.BookingStatusConfirmed {
		go notificationService.SendBookingConfirmedToGuest(booking.ID, booking.SubjectID, booking.RequesterID, subjectTitle)
	} else {
		go notificationService.SendBookingCancelledToGuest(booking.ID, booking.SubjectID, booking.RequesterID, subjectTitle, "")
	}
}
