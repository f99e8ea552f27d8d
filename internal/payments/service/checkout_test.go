package service

import (
	"context"
	"errors"
	"testing"

	"psycare/internal/payments/gateway"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/model"
)

type mockGateway struct {
	createFunc func(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error)
	calls      int
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	m.calls++
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return &gateway.CheckoutSession{
		ID:          "cs_test_123",
		RedirectURL: "https://pay.example.com/cs_test_123",
		Status:      "open",
	}, nil
}

func TestStart_PersistsReferenceBeforeReturningURL(t *testing.T) {
	booking := pendingBooking()
	booking.PaymentReference = ""

	var persistedRef string
	repo := &mockBookingRepository{
		setPaymentReferenceFunc: func(ctx context.Context, id, reference string) error {
			persistedRef = reference
			return nil
		},
	}
	svc := NewCheckoutService(&mockGateway{}, repo, testConfig())

	url, err := svc.Start(context.Background(), booking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://pay.example.com/cs_test_123" {
		t.Errorf("redirect URL = %q", url)
	}
	if persistedRef != "cs_test_123" {
		t.Errorf("persisted reference = %q, want %q", persistedRef, "cs_test_123")
	}
	if booking.PaymentReference != "cs_test_123" {
		t.Errorf("booking reference = %q, want %q", booking.PaymentReference, "cs_test_123")
	}
}

func TestStart_WithholdsURLWhenReferenceNotPersisted(t *testing.T) {
	booking := pendingBooking()
	booking.PaymentReference = ""

	repo := &mockBookingRepository{
		setPaymentReferenceFunc: func(ctx context.Context, id, reference string) error {
			return errors.New("write concern timeout")
		},
	}
	svc := NewCheckoutService(&mockGateway{}, repo, testConfig())

	url, err := svc.Start(context.Background(), booking)
	if err == nil {
		t.Fatal("expected error when the reference cannot be stored")
	}
	if url != "" {
		t.Errorf("redirect URL must be withheld, got %q", url)
	}
}

func TestStart_RejectsAlreadyPaidBooking(t *testing.T) {
	booking := pendingBooking()
	booking.Paid = true

	gw := &mockGateway{}
	svc := NewCheckoutService(gw, &mockBookingRepository{}, testConfig())

	_, err := svc.Start(context.Background(), booking)
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if gw.calls != 0 {
		t.Error("gateway must not be called for a paid booking")
	}
}

func TestStart_RejectsNonPendingBooking(t *testing.T) {
	booking := pendingBooking()
	booking.Status = model.StatusCancelled

	svc := NewCheckoutService(&mockGateway{}, &mockBookingRepository{}, testConfig())

	_, err := svc.Start(context.Background(), booking)
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestStart_RejectsAmountBelowMinimum(t *testing.T) {
	booking := pendingBooking()
	booking.Amount = 10

	gw := &mockGateway{}
	svc := NewCheckoutService(gw, &mockBookingRepository{}, testConfig())

	_, err := svc.Start(context.Background(), booking)
	if err == nil {
		t.Fatal("expected error for amount below the minimum")
	}
	if apperrors.AsAppError(err).Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input error, got %v", err)
	}
	if gw.calls != 0 {
		t.Error("gateway must not be called for an unchargeable amount")
	}
}

func TestStart_GatewayFailure(t *testing.T) {
	booking := pendingBooking()

	gw := &mockGateway{
		createFunc: func(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
			return nil, errors.New("gateway timeout")
		},
	}
	repo := &mockBookingRepository{
		setPaymentReferenceFunc: func(ctx context.Context, id, reference string) error {
			t.Error("no reference should be stored when the session was never created")
			return nil
		},
	}
	svc := NewCheckoutService(gw, repo, testConfig())

	_, err := svc.Start(context.Background(), booking)
	if err == nil {
		t.Fatal("expected error when the gateway fails")
	}
}
