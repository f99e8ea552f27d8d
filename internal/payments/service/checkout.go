package service

import (
	"context"
	"fmt"

	"psycare/internal/bookings/repository"
	"psycare/internal/payments/gateway"
	"psycare/pkg/config"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/model"
)

// CheckoutService opens gateway payment sessions for pending bookings.
type CheckoutService struct {
	gateway gateway.Gateway
	repo    repository.BookingRepository
	cfg     *config.Config
}

func NewCheckoutService(gw gateway.Gateway, repo repository.BookingRepository, cfg *config.Config) *CheckoutService {
	return &CheckoutService{
		gateway: gw,
		repo:    repo,
		cfg:     cfg,
	}
}

// Start creates a checkout session and persists the session ID on the
// booking before the redirect URL is handed out. If the reference
// cannot be stored, the URL is withheld: a payment the webhook cannot
// match to a booking is worse than a failed checkout.
func (s *CheckoutService) Start(ctx context.Context, booking *model.Booking) (string, error) {
	if booking.Paid {
		return "", apperrors.Conflict("Booking is already paid")
	}
	if booking.Status != model.StatusPending {
		return "", apperrors.Conflict("Only pending bookings can be paid")
	}
	if booking.Amount < s.cfg.PaymentMinAmount {
		return "", apperrors.InvalidInput(fmt.Sprintf(
			"Amount %.2f is below the minimum chargeable amount %.2f",
			booking.Amount, s.cfg.PaymentMinAmount,
		))
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutRequest{
		Amount:      booking.Amount,
		Currency:    s.cfg.PaymentCurrency,
		Description: fmt.Sprintf("Appointment on %s at %s", booking.Date, booking.Time),
		SuccessURL:  s.cfg.PaymentSuccessURL,
		CancelURL:   s.cfg.PaymentCancelURL,
		Metadata: map[string]string{
			gateway.MetadataBookingID: booking.ID,
		},
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create checkout session", "booking_id", booking.ID, "error", err)
		return "", apperrors.Internal("Failed to start payment", err)
	}

	if err := s.repo.SetPaymentReference(ctx, booking.ID, session.ID); err != nil {
		s.cfg.Log.Error("Failed to persist payment reference",
			"booking_id", booking.ID,
			"payment_reference", session.ID,
			"error", err,
		)
		return "", apperrors.Internal("Failed to record payment session", err)
	}
	booking.PaymentReference = session.ID

	s.cfg.Log.Info("Checkout session created",
		"booking_id", booking.ID,
		"payment_reference", session.ID,
		"amount", booking.Amount,
	)
	return session.RedirectURL, nil
}
