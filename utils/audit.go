package utils

import (
	"encoding/json"
	"net"
	"stayhaven-server/models"
	"stayhaven-server/storage"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// RecordPaymentEvent appends one row to the payment/transition audit trail.
// actor is 0 for provider webhooks.
func RecordPaymentEvent(ctx iris.Context, bookingID uint, reference, kind string, payload interface{}) {
	var payloadStr string
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			payloadStr = string(b)
		}
	}
	var actorID uint
	if tok := jwt.GetVerifiedToken(ctx); tok != nil {
		var at AccessToken
		if err := tok.Claims(&at); err == nil {
			actorID = at.ID
		}
	}
	event := models.PaymentEvent{
		BookingID:   bookingID,
		Reference:   reference,
		Kind:        kind,
		ActorUserID: actorID,
		PayloadJSON: payloadStr,
		IPAddress:   clientIP(ctx),
	}
	storage.DB.Create(&event)
}

func clientIP(ctx iris.Context) string {
	if ip := ctx.GetHeader("X-Forwarded-For"); ip != "" {
		return ip
	}
	ip, _, _ := net.SplitHostPort(ctx.RemoteAddr())
	return ip
}
