package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"psycare/pkg/client"
	"psycare/pkg/config"
)

// Event types delivered to the webhook endpoint. session_completed and
// payment_succeeded both mean the money arrived; gateways differ in
// which one they send first.
const (
	EventSessionCompleted = "session_completed"
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
	EventPaymentCanceled  = "payment_canceled"
)

// CheckoutRequest opens a hosted payment page for one booking.
type CheckoutRequest struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CheckoutSession is the gateway's handle for a payment attempt. ID is
// the reference later echoed back in webhook events.
type CheckoutSession struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

// MetadataBookingID is the metadata key carrying the booking id on
// checkout sessions; the gateway echoes session metadata back on every
// webhook event for that session.
const MetadataBookingID = "booking_id"

// Event is a webhook delivery. Amount and OccurredAt are the source of
// truth for what was actually charged and when.
type Event struct {
	Type       string            `json:"type"`
	Reference  string            `json:"reference"`
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// BookingID returns the booking id echoed back in the session metadata,
// or "" when the gateway did not carry it.
func (e *Event) BookingID() string {
	return e.Metadata[MetadataBookingID]
}

func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("webhook event missing type")
	}
	if event.Reference == "" {
		return nil, fmt.Errorf("webhook event missing reference")
	}
	return &event, nil
}

// Gateway abstracts the payment provider's checkout API.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

type httpGateway struct {
	client *client.HttpClient
	apiKey string
}

func NewHTTPGateway(cfg *config.Config) Gateway {
	return &httpGateway{
		client: client.NewHttpClient(cfg.PaymentGatewayBaseURL),
		apiKey: cfg.PaymentGatewayAPIKey,
	}
}

func (g *httpGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + g.apiKey,
	}

	resp, err := g.client.POST(ctx, "/v1/checkout/sessions", req, headers)
	if err != nil {
		return nil, fmt.Errorf("checkout session request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("checkout session request returned status %d: %s", resp.StatusCode, string(resp.Body))
	}

	var session CheckoutSession
	if err := resp.DecodeJSON(&session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	if session.ID == "" || session.RedirectURL == "" {
		return nil, fmt.Errorf("checkout session response missing id or redirect_url")
	}

	return &session, nil
}
