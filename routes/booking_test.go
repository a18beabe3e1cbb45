package routes

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"stayhaven-server/storage"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// swapMockDB points storage.DB at a sqlmock-backed gorm connection for the
// duration of one test.
func swapMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatal(err)
	}

	prev := storage.DB
	storage.DB = db
	t.Cleanup(func() {
		storage.DB = prev
		sqlDB.Close()
	})
	return mock
}

func setTestUserID(id uint) iris.Handler {
	return func(ctx iris.Context) {
		ctx.Values().Set("userID", id)
		ctx.Next()
	}
}

// buildWebhookTestApp creates a minimal Iris app with just the payment
// webhook route.
func buildWebhookTestApp() *iris.Application {
	os.Setenv("PAYSTACK_SECRET_KEY", "sk_test_secret")
	app := iris.New()
	app.Post("/api/payment/webhook", PaymentWebhook)
	return app
}

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha512.New, []byte(os.Getenv("PAYSTACK_SECRET_KEY")))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaymentWebhookRejectsMissingSignature(t *testing.T) {
	app := buildWebhookTestApp()
	if err := app.Build(); err != nil {
		t.Fatal(err)
	}

	body := []byte(`{"event":"charge.success","data":{"reference":"r"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", resp.Code)
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	app := buildWebhookTestApp()
	if err := app.Build(); err != nil {
		t.Fatal(err)
	}

	body := []byte(`{"event":"charge.success","data":{"reference":"r"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", "deadbeef")
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad signature, got %d", resp.Code)
	}
}

func TestPaymentWebhookAcknowledgesIgnoredEvents(t *testing.T) {
	app := buildWebhookTestApp()
	if err := app.Build(); err != nil {
		t.Fatal(err)
	}

	// Events other than charge outcomes are acknowledged without touching
	// any booking.
	body := []byte(`{"event":"transfer.success","data":{"reference":"r"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signWebhookBody(body))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", resp.Code)
	}
}

func TestPaymentWebhookTransitionFailureIsRetryable(t *testing.T) {
	app := buildWebhookTestApp()
	if err := app.Build(); err != nil {
		t.Fatal(err)
	}
	mock := swapMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "intent_id", "status", "total_price_minor", "currency", "payment_reference"}).
			AddRow(1, "ref-1", "pending", int64(1650000), "KES", "ref-1"))
	mock.ExpectExec(`UPDATE "bookings" SET`).
		WillReturnError(errors.New("connection reset"))

	// A transient failure while settling must surface as an error so the
	// provider retries the delivery; a 200 here would drop the payment.
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":1650000,"currency":"KES","status":"success"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signWebhookBody(body))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on transition failure, got %d", resp.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPaymentWebhookReplayOnSettledBookingIsAcknowledged(t *testing.T) {
	app := buildWebhookTestApp()
	if err := app.Build(); err != nil {
		t.Fatal(err)
	}
	mock := swapMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "intent_id", "status", "total_price_minor", "currency", "payment_reference"}).
			AddRow(1, "ref-1", "confirmed", int64(1650000), "KES", "ref-1"))
	// compare-and-set matches nothing on a settled booking
	mock.ExpectExec(`UPDATE "bookings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "payment_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":1650000,"currency":"KES","status":"success"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signWebhookBody(body))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for replayed delivery, got %d", resp.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCancelBookingConfirmedIsRejected(t *testing.T) {
	app := iris.New()
	app.Delete("/api/booking/{id:uint}", setTestUserID(7), CancelBooking)
	if err := app.Build(); err != nil {
		t.Fatal(err)
	}
	mock := swapMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "intent_id", "subject_type", "subject_id", "requester_id", "status", "total_price_minor", "currency"}).
			AddRow(5, "intent-5", "activity", 9, 7, "confirmed", int64(1100000), "KES"))

	req := httptest.NewRequest(http.MethodDelete, "/api/booking/5", nil)
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for confirmed booking, got %d", resp.Code)
	}
	// no UPDATE may have been attempted: confirmed is terminal
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInitiateBookingProviderRejectionCancelsPending(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": false, "message": "Invalid amount"}`))
	}))
	defer provider.Close()
	t.Setenv("PAYSTACK_BASE_URL", provider.URL)
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_secret")

	app := iris.New()
	app.Validator = validator.New()
	app.Post("/api/booking/initiate", setTestUserID(7), InitiateBooking)
	if err := app.Build(); err != nil {
		t.Fatal(err)
	}
	mock := swapMockDB(t)

	// no existing booking for the intent id
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE intent_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "properties"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "host_id", "title", "nightly_price_minor", "currency", "service_fee_percent", "max_guests", "status", "cancellation_policy"}).
			AddRow(42, 3, "Seafront Loft", int64(500000), "KES", 10, 4, "published", "flexible"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "guest@example.com"))
	// the rejection is terminal: the pending booking gets cancelled
	mock.ExpectExec(`UPDATE "bookings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "payment_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	body := []byte(`{
		"intentID": "intent-reject-1",
		"subjectType": "stay",
		"subjectID": 42,
		"checkIn": "2026-10-01T00:00:00Z",
		"checkOut": "2026-10-04T00:00:00Z",
		"guestCount": 2
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/booking/initiate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for provider rejection, got %d", resp.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPaymentWebhookRejectsMalformedBody(t *testing.T) {
	app := buildWebhookTestApp()
	if err := app.Build(); err != nil {
		t.Fatal(err)
	}

	body := []byte(`not json`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signWebhookBody(body))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.Code)
	}
}
