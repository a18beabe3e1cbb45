package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, url string) *PaystackClient {
	t.Helper()
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_secret")
	t.Setenv("PAYSTACK_BASE_URL", url)
	return NewPaystackClient()
}

func TestInitializeTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code": "abc123",
				"reference": "intent-abc-123"
			}
		}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	result, err := client.InitializeTransaction(InitializeRequest{
		Email:       "guest@example.com",
		AmountMinor: 1650000,
		Currency:    "KES",
		Reference:   "intent-abc-123",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paystack.com/abc123", result.AuthorizationURL)
	assert.Equal(t, "intent-abc-123", result.Reference)
}

func TestInitializeTransactionRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{
			"status": true,
			"message": "ok",
			"data": {"authorization_url": "https://checkout.paystack.com/x", "access_code": "x", "reference": "r"}
		}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	result, err := client.InitializeTransaction(InitializeRequest{Reference: "r"})
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, "https://checkout.paystack.com/x", result.AuthorizationURL)
}

func TestInitializeTransactionRejectionIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": false, "message": "Invalid amount"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.InitializeTransaction(InitializeRequest{Reference: "r"})

	assert.ErrorIs(t, err, ErrProviderRejected)
	assert.Contains(t, err.Error(), "Invalid amount")
	assert.Equal(t, 1, attempts)
}

func TestInitializeTransactionNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening

	client := testClient(t, server.URL)
	_, err := client.InitializeTransaction(InitializeRequest{Reference: "r"})

	assert.ErrorIs(t, err, ErrNetworkFailure)
}

func TestVerifyTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/intent-abc-123", r.URL.Path)
		w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {"status": "success", "reference": "intent-abc-123", "amount": 1650000, "currency": "KES"}
		}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	result, err := client.VerifyTransaction("intent-abc-123")
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, int64(1650000), result.AmountMinor)
}

func TestValidWebhookSignature(t *testing.T) {
	secret := "sk_test_secret"
	body := []byte(`{"event":"charge.success","data":{"reference":"r"}}`)

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, ValidWebhookSignature(secret, body, signature))
	assert.False(t, ValidWebhookSignature(secret, body, "deadbeef"))
	assert.False(t, ValidWebhookSignature(secret, []byte(`tampered`), signature))
	assert.False(t, ValidWebhookSignature("wrong_secret", body, signature))
}
