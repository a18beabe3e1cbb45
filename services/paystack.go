package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// PaystackClient talks to the payment provider's REST API. Initialize
// registers a charge and returns the page the guest is redirected to;
// Verify re-reads a transaction's outcome. Webhook authenticity is an
// HMAC-SHA512 of the raw body with the secret key.
type PaystackClient struct {
	secret  string
	baseURL string
	client  *http.Client
}

func NewPaystackClient() *PaystackClient {
	baseURL := os.Getenv("PAYSTACK_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &PaystackClient{
		secret:  os.Getenv("PAYSTACK_SECRET_KEY"),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type InitializeRequest struct {
	Email       string `json:"email"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyResult struct {
	Status      string `json:"status"` // success, failed, abandoned
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type providerEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransaction registers a charge with the provider. Network errors
// and 5xx responses are retried with backoff (the provider keys the charge on
// our reference, so retries cannot double-charge); 4xx responses surface as
// ErrProviderRejected and are not retried.
func (c *PaystackClient) InitializeTransaction(req InitializeRequest) (*InitializeResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var result InitializeResult
	err = c.postWithRetry("/transaction/initialize", payload, &result)
	if err != nil {
		return nil, err
	}
	if result.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: provider returned no authorization url", ErrProviderRejected)
	}
	return &result, nil
}

// VerifyTransaction fetches the settled outcome of a charge by reference.
func (c *PaystackClient) VerifyTransaction(reference string) (*VerifyResult, error) {
	httpReq, err := http.NewRequest(http.MethodGet, c.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secret)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer res.Body.Close()

	var result VerifyResult
	if err := decodeEnvelope(res, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *PaystackClient) postWithRetry(path string, payload []byte, out interface{}) error {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.secret)
		httpReq.Header.Set("Content-Type", "application/json")

		res, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrNetworkFailure, err)
			log.Printf("provider call %s failed (attempt %d): %v", path, attempt+1, err)
			continue
		}

		if res.StatusCode >= 500 {
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
			lastErr = fmt.Errorf("%w: provider returned status %d", ErrNetworkFailure, res.StatusCode)
			continue
		}

		err = decodeEnvelope(res, out)
		res.Body.Close()
		return err
	}
	return lastErr
}

func decodeEnvelope(res *http.Response, out interface{}) error {
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	var envelope providerEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: malformed provider response", ErrNetworkFailure)
	}
	if res.StatusCode >= 400 || !envelope.Status {
		return fmt.Errorf("%w: %s", ErrProviderRejected, envelope.Message)
	}
	return json.Unmarshal(envelope.Data, out)
}

// ValidWebhookSignature checks the provider's HMAC-SHA512 signature over the
// raw webhook body, in constant time.
func ValidWebhookSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEvent is the provider's callback payload.
type WebhookEvent struct {
	Event string `json:"event"` // charge.success, charge.failed
	Data  struct {
		Reference   string `json:"reference"`
		AmountMinor int64  `json:"amount"`
		Currency    string `json:"currency"`
		Status      string `json:"status"`
	} `json:"data"`
}
