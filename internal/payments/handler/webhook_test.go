package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	bookingserrors "psycare/internal/bookings/errors"
	"psycare/internal/bookings/repository"
	"psycare/internal/payments/service"
	"psycare/pkg/config"
	"psycare/pkg/events"
	"psycare/pkg/logger"
	"psycare/pkg/model"
)

// stubRepo overrides only what the reconciler touches. Calling anything
// else panics, which is what we want in a handler test.
type stubRepo struct {
	repository.BookingRepository
	booking *model.Booking
}

func (s *stubRepo) FindByPaymentReference(ctx context.Context, reference string) (*model.Booking, error) {
	if s.booking != nil && s.booking.PaymentReference == reference {
		return s.booking, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (s *stubRepo) MarkApproved(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
	return true, nil
}

func newTestHandler(booking *model.Booking) *WebhookHandler {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{Log: log, MeetingBaseURL: "https://meet.example.com/t"}
	reconciler := service.NewReconciler(&stubRepo{booking: booking}, nil, events.NopPublisher{}, cfg)
	return NewWebhookHandler(reconciler, log)
}

func serve(h *WebhookHandler, body string) *httptest.ResponseRecorder {
	router := httprouter.New()
	h.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReceive_ValidEvent(t *testing.T) {
	booking := &model.Booking{
		ID:               "507f1f77bcf86cd799439099",
		Status:           model.StatusPending,
		Amount:           150,
		PaymentReference: "cs_test_123",
	}
	h := newTestHandler(booking)

	rec := serve(h, `{"type":"payment_succeeded","reference":"cs_test_123","amount":150}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Data["received"] {
		t.Errorf("response = %s, want received=true", rec.Body.String())
	}
}

func TestReceive_MalformedPayload(t *testing.T) {
	h := newTestHandler(nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "this is not json"},
		{"missing type", `{"reference":"cs_test_123"}`},
		{"missing reference", `{"type":"payment_succeeded"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestReceive_UnknownReferenceStillAcknowledged(t *testing.T) {
	h := newTestHandler(nil)

	rec := serve(h, `{"type":"payment_succeeded","reference":"cs_unknown","amount":150}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; the gateway must not redeliver unmatchable events", rec.Code, http.StatusOK)
	}
}
