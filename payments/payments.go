package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"edumart/apperrors"

	"github.com/go-resty/resty/v2"
)

// CheckoutSession mirrors the payment gateway's hosted checkout session.
// Metadata carries {courseId|plan, userId} bound at session creation so
// fulfillment can recover full context from the session alone.
type CheckoutSession struct {
	ID             string            `json:"id"`
	URL            string            `json:"url"`
	Status         string            `json:"status"`         // open, complete, expired
	PaymentStatus  string            `json:"payment_status"` // unpaid, paid
	Mode           string            `json:"mode"`           // payment, subscription
	AmountTotal    int64             `json:"amount_total"`
	Currency       string            `json:"currency"`
	CustomerID     string            `json:"customer"`
	SubscriptionID string            `json:"subscription"`
	Metadata       map[string]string `json:"metadata"`
}

// Subscription mirrors the gateway's recurring subscription object.
// Period bounds are unix seconds and may be absent on some gateway
// versions; callers must tolerate zero values.
type Subscription struct {
	ID                 string `json:"id"`
	Status             string `json:"status"` // active, past_due, canceled
	PriceID            string `json:"price"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}

// LineItem is one purchasable entry on a checkout session.
type LineItem struct {
	PriceID     string `json:"price,omitempty"`
	Name        string `json:"name,omitempty"`
	AmountCents int64  `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Quantity    int64  `json:"quantity"`
}

// Event is a signed webhook notification from the gateway.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Processor is the payment gateway primitive consumed by checkout and
// fulfillment. Implementations must be safe for concurrent use.
type Processor interface {
	CreateSession(items []LineItem, metadata map[string]string, mode, successURL, cancelURL string) (*CheckoutSession, error)
	RetrieveSession(id string, expand ...string) (*CheckoutSession, error)
	RetrieveSubscription(id string) (*Subscription, error)
}

// HTTPProcessor talks to the gateway REST API.
type HTTPProcessor struct {
	client *resty.Client
}

// NewHTTPProcessor builds a gateway client for the given base URL and secret key.
func NewHTTPProcessor(baseURL, apiKey string) *HTTPProcessor {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey)
	return &HTTPProcessor{client: c}
}

// CreateSession opens a hosted checkout session with the given line
// items and metadata.
func (p *HTTPProcessor) CreateSession(items []LineItem, metadata map[string]string, mode, successURL, cancelURL string) (*CheckoutSession, error) {
	body := map[string]interface{}{
		"line_items":  items,
		"metadata":    metadata,
		"mode":        mode,
		"success_url": successURL,
		"cancel_url":  cancelURL,
	}

	var session CheckoutSession
	resp, err := p.client.R().
		SetBody(body).
		SetResult(&session).
		Post("/checkout/sessions")
	if err != nil {
		return nil, fmt.Errorf("create session request failed: %v", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create session failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &session, nil
}

// RetrieveSession fetches a checkout session by id, optionally expanding
// nested objects (e.g. "subscription").
func (p *HTTPProcessor) RetrieveSession(id string, expand ...string) (*CheckoutSession, error) {
	req := p.client.R()
	for _, e := range expand {
		req.SetQueryParam("expand[]", e)
	}

	var session CheckoutSession
	resp, err := req.
		SetResult(&session).
		Get("/checkout/sessions/" + id)
	if err != nil {
		return nil, fmt.Errorf("retrieve session request failed: %v", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("retrieve session failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &session, nil
}

// RetrieveSubscription fetches a subscription by id.
func (p *HTTPProcessor) RetrieveSubscription(id string) (*Subscription, error) {
	var sub Subscription
	resp, err := p.client.R().
		SetResult(&sub).
		Get("/subscriptions/" + id)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription request failed: %v", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("retrieve subscription failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &sub, nil
}

// signatureTolerance bounds how old a signed webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks the gateway's "t=<unix>,v1=<hex>" header
// against an HMAC-SHA256 of "<t>.<rawBody>" keyed with the signing secret.
func VerifyWebhookSignature(payload []byte, sigHeader, secret string) error {
	var timestamp int64
	var signature string

	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return apperrors.ErrSignatureVerification
			}
			timestamp = ts
		case "v1":
			signature = kv[1]
		}
	}

	if timestamp == 0 || signature == "" {
		return apperrors.ErrSignatureVerification
	}
	if time.Since(time.Unix(timestamp, 0)) > signatureTolerance {
		return apperrors.ErrSignatureVerification
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperrors.ErrSignatureVerification
	}
	return nil
}

// ConstructEvent verifies the signature header and unmarshals the
// webhook payload into an Event.
func ConstructEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	if err := VerifyWebhookSignature(payload, sigHeader, secret); err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %v", err)
	}
	return &event, nil
}

// SignPayload produces a signature header for the given payload. Used by
// gateway simulators and tests.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
