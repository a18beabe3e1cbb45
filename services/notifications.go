package services

import (
	"encoding/json"
	"fmt"
	"log"
	"stayhaven-server/models"
	"stayhaven-server/storage"
	"stayhaven-server/utils"
)

// NotificationService handles all push notification logic
type NotificationService struct{}

// NewNotificationService creates a new notification service instance
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotificationData represents the data payload for notifications
type NotificationData struct {
	Type      string `json:"type"`
	BookingID string `json:"bookingId,omitempty"`
	SubjectID string `json:"subjectId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	HostID    string `json:"hostId,omitempty"`
	Screen    string `json:"screen"` // Target screen to navigate to
}

// getUserPushTokens retrieves all push tokens for a user
func (ns *NotificationService) getUserPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %v", err)
	}

	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user has notifications disabled or no tokens")
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %v", err)
	}

	return tokens, nil
}

// SendNotificationToUser sends a notification to a specific user
func (ns *NotificationService) SendNotificationToUser(userID uint, title, body string, data NotificationData) error {
	tokens, err := ns.getUserPushTokens(userID)
	if err != nil {
		log.Printf("Failed to get push tokens for user %d: %v", userID, err)
		return err
	}

	dataMap := map[string]string{
		"type":      data.Type,
		"bookingId": data.BookingID,
		"subjectId": data.SubjectID,
		"userId":    data.UserID,
		"hostId":    data.HostID,
		"screen":    data.Screen,
	}

	var lastError error
	for _, token := range tokens {
		if err := utils.SendNotification(token, title, body, dataMap); err != nil {
			log.Printf("Failed to send notification to token %s: %v", token, err)
			lastError = err
		}
	}

	return lastError
}

// SendBookingRequestToHost sends notification when a guest initiates a booking
func (ns *NotificationService) SendBookingRequestToHost(bookingID, subjectID, hostID, guestID uint, guestName, subjectTitle string) error {
	title := "New Booking Request"
	body := fmt.Sprintf("%s requested a booking for %s", guestName, subjectTitle)

	data := NotificationData{
		Type:      "booking_request",
		BookingID: fmt.Sprintf("%d", bookingID),
		SubjectID: fmt.Sprintf("%d", subjectID),
		UserID:    fmt.Sprintf("%d", guestID),
		HostID:    fmt.Sprintf("%d", hostID),
		Screen:    "HostBookings",
	}

	return ns.SendNotificationToUser(hostID, title, body, data)
}

// SendBookingConfirmedToGuest sends notification when a booking is confirmed
func (ns *NotificationService) SendBookingConfirmedToGuest(bookingID, subjectID, guestID uint, subjectTitle string) error {
	title := "Booking Confirmed"
	body := fmt.Sprintf("Your booking for %s is confirmed", subjectTitle)

	data := NotificationData{
		Type:      "booking_status",
		BookingID: fmt.Sprintf("%d", bookingID),
		SubjectID: fmt.Sprintf("%d", subjectID),
		UserID:    fmt.Sprintf("%d", guestID),
		Screen:    "BookingDetails",
	}

	return ns.SendNotificationToUser(guestID, title, body, data)
}

// SendBookingCancelledToGuest sends notification when a booking is cancelled
func (ns *NotificationService) SendBookingCancelledToGuest(bookingID, subjectID, guestID uint, subjectTitle, reason string) error {
	title := "Booking Cancelled"
	body := fmt.Sprintf("Your booking for %s was cancelled. %s", subjectTitle, reason)

	data := NotificationData{
		Type:      "booking_cancelled",
		BookingID: fmt.Sprintf("%d", bookingID),
		SubjectID: fmt.Sprintf("%d", subjectID),
		UserID:    fmt.Sprintf("%d", guestID),
		Screen:    "BookingDetails",
	}

	return ns.SendNotificationToUser(guestID, title, body, data)
}
