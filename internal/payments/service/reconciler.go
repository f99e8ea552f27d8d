package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "psycare/internal/bookings/errors"
	"psycare/internal/bookings/repository"
	"psycare/internal/payments/gateway"
	"psycare/pkg/config"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/events"
	"psycare/pkg/model"
	"psycare/pkg/sealer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// Reconciler applies gateway webhook events to bookings. Every
// transition filters on the pending status, so deliveries are
// idempotent under replay and deterministic under reordering:
//   - success then anything: the booking stays approved
//   - failure or cancel after success: no-op
//   - success after cancellation: never resurrects the booking, the
//     payment is flagged for manual review instead
type Reconciler struct {
	repo      repository.BookingRepository
	sealer    *sealer.Sealer
	publisher events.Publisher
	cfg       *config.Config
}

func NewReconciler(repo repository.BookingRepository, s *sealer.Sealer, publisher events.Publisher, cfg *config.Config) *Reconciler {
	return &Reconciler{
		repo:      repo,
		sealer:    s,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Apply processes one webhook event. A nil return acknowledges the
// delivery; errors make the gateway redeliver, so only genuinely
// retryable failures bubble up. Events that reference no known booking
// are acknowledged and logged, rejecting them would just make the
// gateway hammer us with something we can never match.
func (r *Reconciler) Apply(ctx context.Context, event *gateway.Event) error {
	booking, err := r.findBooking(ctx, event)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			r.cfg.Log.Warn("Webhook event references unknown payment",
				"event_type", event.Type,
				"payment_reference", event.Reference,
				"metadata_booking_id", event.BookingID(),
			)
			return nil
		}
		return err
	}

	switch event.Type {
	case gateway.EventSessionCompleted, gateway.EventPaymentSucceeded:
		return r.applySuccess(ctx, booking, event)
	case gateway.EventPaymentFailed:
		return r.applyFailure(ctx, booking, event)
	case gateway.EventPaymentCanceled:
		return r.applyCancellation(ctx, booking, event)
	default:
		r.cfg.Log.Warn("Ignoring unknown webhook event type",
			"event_type", event.Type,
			"payment_reference", event.Reference,
		)
		return nil
	}
}

// findBooking matches the event to a booking by payment reference,
// falling back to the booking id carried in the session metadata. The
// fallback covers events for a superseded session: restarting checkout
// rotates the stored reference, but the old session still names the
// booking it was opened for.
func (r *Reconciler) findBooking(ctx context.Context, event *gateway.Event) (*model.Booking, error) {
	booking, err := r.repo.FindByPaymentReference(ctx, event.Reference)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, bookingserrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to look up booking for payment event", err)
	}

	id := event.BookingID()
	if id == "" {
		return nil, bookingserrors.ErrNotFound
	}

	booking, err = r.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, apperrors.Internal("Failed to look up booking by event metadata", err)
	}

	r.cfg.Log.Info("Webhook matched booking through session metadata",
		"booking_id", booking.ID,
		"payment_reference", event.Reference,
	)
	return booking, nil
}

func (r *Reconciler) applySuccess(ctx context.Context, booking *model.Booking, event *gateway.Event) error {
	if booking.Status == model.StatusCancelled {
		return r.flagForReview(ctx, booking,
			"payment succeeded after the booking was cancelled")
	}

	if event.Amount != booking.Amount {
		r.cfg.Log.Warn("Charged amount differs from booked amount",
			"booking_id", booking.ID,
			"booked_amount", booking.Amount,
			"charged_amount", event.Amount,
		)
	}

	meetingLink, err := r.mintMeetingLink(booking)
	if err != nil {
		return apperrors.Internal("Failed to mint meeting link", err)
	}

	transactionAt := event.OccurredAt
	if transactionAt.IsZero() {
		transactionAt = time.Now().UTC()
	}

	matched, err := r.repo.MarkApproved(ctx, booking.ID, event.Amount, transactionAt, meetingLink)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// The slot index rejected the approval: another paid booking
			// already holds the slot. The money still moved, so an
			// operator has to refund or rebook.
			return r.flagForReview(ctx, booking,
				"payment received but the slot is already confirmed for another booking")
		}
		return apperrors.Internal("Failed to approve booking", err)
	}

	if !matched {
		current, findErr := r.repo.FindByID(ctx, booking.ID)
		if findErr != nil {
			return apperrors.Internal("Failed to re-check booking after approval no-op", findErr)
		}
		if current.Status == model.StatusCancelled {
			return r.flagForReview(ctx, current,
				"payment succeeded after the booking was cancelled")
		}
		// Already approved or completed, this is a replay.
		r.cfg.Log.Info("Payment success already applied",
			"booking_id", booking.ID,
			"status", current.Status,
		)
		return nil
	}

	r.publish(ctx, events.TypeBookingApproved, booking, model.StatusApproved, event.Amount)

	r.cfg.Log.Info("Booking approved by payment",
		"booking_id", booking.ID,
		"payment_reference", event.Reference,
		"amount", event.Amount,
	)
	return nil
}

func (r *Reconciler) applyFailure(ctx context.Context, booking *model.Booking, event *gateway.Event) error {
	reason := event.Reason
	if reason == "" {
		reason = "payment failed"
	}

	matched, err := r.repo.MarkPaymentFailed(ctx, booking.ID, reason)
	if err != nil {
		return apperrors.Internal("Failed to record payment failure", err)
	}
	if !matched {
		r.cfg.Log.Info("Payment failure ignored, booking no longer pending",
			"booking_id", booking.ID,
			"status", booking.Status,
		)
		return nil
	}

	r.publish(ctx, events.TypePaymentFailed, booking, booking.Status, event.Amount)

	r.cfg.Log.Info("Payment failure recorded",
		"booking_id", booking.ID,
		"payment_reference", event.Reference,
		"reason", reason,
	)
	return nil
}

func (r *Reconciler) applyCancellation(ctx context.Context, booking *model.Booking, event *gateway.Event) error {
	matched, err := r.repo.MarkCancelledByGateway(ctx, booking.ID)
	if err != nil {
		return apperrors.Internal("Failed to record payment cancellation", err)
	}
	if !matched {
		r.cfg.Log.Info("Payment cancellation ignored, booking no longer pending",
			"booking_id", booking.ID,
			"status", booking.Status,
		)
		return nil
	}

	r.publish(ctx, events.TypeBookingCancelled, booking, model.StatusCancelled, event.Amount)

	r.cfg.Log.Info("Booking cancelled by gateway",
		"booking_id", booking.ID,
		"payment_reference", event.Reference,
	)
	return nil
}

func (r *Reconciler) flagForReview(ctx context.Context, booking *model.Booking, note string) error {
	if err := r.repo.FlagNeedsReview(ctx, booking.ID, note); err != nil {
		return apperrors.Internal("Failed to flag booking for review", err)
	}

	r.publish(ctx, events.TypeBookingNeedsReview, booking, booking.Status, booking.Amount)

	r.cfg.Log.Warn("Booking flagged for manual review",
		"booking_id", booking.ID,
		"note", note,
	)
	return nil
}

func (r *Reconciler) mintMeetingLink(booking *model.Booking) (string, error) {
	if r.sealer == nil {
		return fmt.Sprintf("%s/%s", r.cfg.MeetingBaseURL, uuid.New().String()), nil
	}

	slotKey := fmt.Sprintf("%s_%s_%s", booking.DoctorID, booking.Date, booking.Time)
	token, err := r.sealer.Seal(booking.ID, slotKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", r.cfg.MeetingBaseURL, token), nil
}

func (r *Reconciler) publish(ctx context.Context, eventType string, b *model.Booking, status string, amount float64) {
	event := events.NewBookingEvent(eventType, b.ID, b.PatientID, b.DoctorID, b.Date, b.Time, status)
	event.Amount = amount
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.cfg.Log.Warn("Failed to publish payment event",
			"event_type", eventType,
			"booking_id", b.ID,
			"error", err,
		)
	}
}
