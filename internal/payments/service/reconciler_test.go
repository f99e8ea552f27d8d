package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "psycare/internal/bookings/errors"
	"psycare/internal/payments/gateway"
	"psycare/pkg/config"
	mongotx "psycare/pkg/db/mongo"
	"psycare/pkg/events"
	"psycare/pkg/logger"
	"psycare/pkg/model"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockBookingRepository struct {
	findByPaymentReferenceFunc func(ctx context.Context, reference string) (*model.Booking, error)
	findByIDFunc               func(ctx context.Context, id string) (*model.Booking, error)
	markApprovedFunc           func(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error)
	markPaymentFailedFunc      func(ctx context.Context, id, reason string) (bool, error)
	markCancelledFunc          func(ctx context.Context, id string) (bool, error)
	setPaymentReferenceFunc    func(ctx context.Context, id, reference string) error
	flaggedNotes               []string
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindByPaymentReference(ctx context.Context, reference string) (*model.Booking, error) {
	if m.findByPaymentReferenceFunc != nil {
		return m.findByPaymentReferenceFunc(ctx, reference)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindSlotHolder(ctx context.Context, doctorID, date, slotTime string) (*model.Booking, error) {
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) FindBlockedTimes(ctx context.Context, doctorID, date string) ([]string, error) {
	return nil, nil
}

func (m *mockBookingRepository) SetPaymentReference(ctx context.Context, id, reference string) error {
	if m.setPaymentReferenceFunc != nil {
		return m.setPaymentReferenceFunc(ctx, id, reference)
	}
	return nil
}

func (m *mockBookingRepository) MarkApproved(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
	if m.markApprovedFunc != nil {
		return m.markApprovedFunc(ctx, id, amount, transactionAt, meetingLink)
	}
	return true, nil
}

func (m *mockBookingRepository) MarkPaymentFailed(ctx context.Context, id, reason string) (bool, error) {
	if m.markPaymentFailedFunc != nil {
		return m.markPaymentFailedFunc(ctx, id, reason)
	}
	return true, nil
}

func (m *mockBookingRepository) MarkCancelledByGateway(ctx context.Context, id string) (bool, error) {
	if m.markCancelledFunc != nil {
		return m.markCancelledFunc(ctx, id)
	}
	return true, nil
}

func (m *mockBookingRepository) Cancel(ctx context.Context, id string) error {
	return nil
}

func (m *mockBookingRepository) Complete(ctx context.Context, id string) error {
	return nil
}

func (m *mockBookingRepository) FlagNeedsReview(ctx context.Context, id, note string) error {
	m.flaggedNotes = append(m.flaggedNotes, note)
	return nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type recordingPublisher struct {
	published []events.BookingEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.BookingEvent) error {
	p.published = append(p.published, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	var out []string
	for _, e := range p.published {
		out = append(out, e.Type)
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		MeetingBaseURL:   "https://meet.example.com/t",
		PaymentCurrency:  "usd",
		PaymentMinAmount: 50,
	}
}

func pendingBooking() *model.Booking {
	return &model.Booking{
		ID:               "507f1f77bcf86cd799439099",
		PatientID:        "507f1f77bcf86cd799439011",
		DoctorID:         "507f191e810c19729de860ea",
		Date:             "2099-01-15",
		Time:             "10:00",
		Amount:           150,
		Status:           model.StatusPending,
		PaymentStatus:    model.PaymentPending,
		PaymentReference: "cs_test_123",
	}
}

func successEvent() *gateway.Event {
	return &gateway.Event{
		Type:       gateway.EventPaymentSucceeded,
		Reference:  "cs_test_123",
		Amount:     150,
		Currency:   "usd",
		OccurredAt: time.Date(2099, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

// ────────────────────────────────────────────────
// Success events
// ────────────────────────────────────────────────

func TestApply_SuccessApprovesPendingBooking(t *testing.T) {
	booking := pendingBooking()
	var approvedAmount float64
	var mintedLink string

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
		markApprovedFunc: func(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
			approvedAmount = amount
			mintedLink = meetingLink
			return true, nil
		},
	}
	publisher := &recordingPublisher{}
	reconciler := NewReconciler(repo, nil, publisher, testConfig())

	if err := reconciler.Apply(context.Background(), successEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approvedAmount != 150 {
		t.Errorf("approved amount = %v, want 150", approvedAmount)
	}
	if !strings.HasPrefix(mintedLink, "https://meet.example.com/t/") {
		t.Errorf("meeting link = %q, want it under the meeting base URL", mintedLink)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeBookingApproved {
		t.Errorf("published events = %v, want one approved event", publisher.types())
	}
}

func TestApply_SuccessReplayIsNoOp(t *testing.T) {
	booking := pendingBooking()
	booking.Status = model.StatusApproved
	booking.Paid = true

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
		markApprovedFunc: func(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
			return false, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
	}
	publisher := &recordingPublisher{}
	reconciler := NewReconciler(repo, nil, publisher, testConfig())

	if err := reconciler.Apply(context.Background(), successEvent()); err != nil {
		t.Fatalf("replayed delivery must be acknowledged, got %v", err)
	}
	if len(repo.flaggedNotes) != 0 {
		t.Errorf("replay must not flag for review, got %v", repo.flaggedNotes)
	}
	if len(publisher.published) != 0 {
		t.Errorf("replay must not re-publish events, got %v", publisher.types())
	}
}

func TestApply_SuccessAfterCancellationFlagsForReview(t *testing.T) {
	booking := pendingBooking()
	booking.Status = model.StatusCancelled

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
		markApprovedFunc: func(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
			t.Error("a cancelled booking must never be approved")
			return false, nil
		},
	}
	publisher := &recordingPublisher{}
	reconciler := NewReconciler(repo, nil, publisher, testConfig())

	if err := reconciler.Apply(context.Background(), successEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.flaggedNotes) != 1 {
		t.Fatalf("expected one review flag, got %v", repo.flaggedNotes)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeBookingNeedsReview {
		t.Errorf("published events = %v, want one needs_review event", publisher.types())
	}
}

func TestApply_SuccessRacingCancellationFlagsForReview(t *testing.T) {
	// The booking was pending when fetched but cancelled before the
	// approval transition matched.
	booking := pendingBooking()
	cancelled := pendingBooking()
	cancelled.Status = model.StatusCancelled

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
		markApprovedFunc: func(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
			return false, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return cancelled, nil
		},
	}
	reconciler := NewReconciler(repo, nil, &recordingPublisher{}, testConfig())

	if err := reconciler.Apply(context.Background(), successEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.flaggedNotes) != 1 {
		t.Fatalf("expected one review flag, got %v", repo.flaggedNotes)
	}
}

func TestApply_SlotLostToAnotherBookingFlagsForReview(t *testing.T) {
	booking := pendingBooking()

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
		markApprovedFunc: func(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
			return false, mongo.WriteException{
				WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
			}
		},
	}
	reconciler := NewReconciler(repo, nil, &recordingPublisher{}, testConfig())

	if err := reconciler.Apply(context.Background(), successEvent()); err != nil {
		t.Fatalf("the delivery must still be acknowledged, got %v", err)
	}
	if len(repo.flaggedNotes) != 1 {
		t.Fatalf("expected one review flag, got %v", repo.flaggedNotes)
	}
}

// ────────────────────────────────────────────────
// Failure and cancellation events
// ────────────────────────────────────────────────

func TestApply_FailureRecordsReason(t *testing.T) {
	booking := pendingBooking()
	var recordedReason string

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
		markPaymentFailedFunc: func(ctx context.Context, id, reason string) (bool, error) {
			recordedReason = reason
			return true, nil
		},
	}
	reconciler := NewReconciler(repo, nil, &recordingPublisher{}, testConfig())

	event := &gateway.Event{
		Type:      gateway.EventPaymentFailed,
		Reference: "cs_test_123",
		Reason:    "card_declined",
	}
	if err := reconciler.Apply(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recordedReason != "card_declined" {
		t.Errorf("reason = %q, want %q", recordedReason, "card_declined")
	}
}

func TestApply_FailureAfterApprovalIsNoOp(t *testing.T) {
	booking := pendingBooking()
	booking.Status = model.StatusApproved
	booking.Paid = true

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
		markPaymentFailedFunc: func(ctx context.Context, id, reason string) (bool, error) {
			return false, nil
		},
	}
	publisher := &recordingPublisher{}
	reconciler := NewReconciler(repo, nil, publisher, testConfig())

	event := &gateway.Event{Type: gateway.EventPaymentFailed, Reference: "cs_test_123"}
	if err := reconciler.Apply(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(publisher.published) != 0 {
		t.Errorf("out of order failure must not publish, got %v", publisher.types())
	}
}

func TestApply_CancellationFreesSlot(t *testing.T) {
	booking := pendingBooking()

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
	}
	publisher := &recordingPublisher{}
	reconciler := NewReconciler(repo, nil, publisher, testConfig())

	event := &gateway.Event{Type: gateway.EventPaymentCanceled, Reference: "cs_test_123"}
	if err := reconciler.Apply(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeBookingCancelled {
		t.Errorf("published events = %v, want one cancelled event", publisher.types())
	}
}

// ────────────────────────────────────────────────
// Unmatched and unknown events
// ────────────────────────────────────────────────

func TestApply_UnknownReferenceIsAcknowledged(t *testing.T) {
	repo := &mockBookingRepository{}
	reconciler := NewReconciler(repo, nil, &recordingPublisher{}, testConfig())

	event := &gateway.Event{Type: gateway.EventPaymentSucceeded, Reference: "cs_unknown"}
	if err := reconciler.Apply(context.Background(), event); err != nil {
		t.Fatalf("unmatched events must be acknowledged, got %v", err)
	}
}

func TestApply_MatchesBookingByMetadataWhenReferenceRotated(t *testing.T) {
	// A checkout restart stored a new reference, then the gateway
	// delivered a success for the original session. The reference no
	// longer matches, but the session metadata names the booking.
	booking := pendingBooking()
	booking.PaymentReference = "cs_test_456"
	approved := false

	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return nil, bookingserrors.ErrNotFound
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			if id != booking.ID {
				t.Errorf("looked up booking %q, want %q", id, booking.ID)
			}
			return booking, nil
		},
		markApprovedFunc: func(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
			approved = true
			return true, nil
		},
	}
	reconciler := NewReconciler(repo, nil, &recordingPublisher{}, testConfig())

	event := successEvent()
	event.Metadata = map[string]string{gateway.MetadataBookingID: booking.ID}

	if err := reconciler.Apply(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approved {
		t.Error("expected the booking to be approved through the metadata fallback")
	}
}

func TestApply_UnknownReferenceAndMetadataIsAcknowledged(t *testing.T) {
	repo := &mockBookingRepository{}
	reconciler := NewReconciler(repo, nil, &recordingPublisher{}, testConfig())

	event := &gateway.Event{
		Type:      gateway.EventPaymentSucceeded,
		Reference: "cs_unknown",
		Metadata:  map[string]string{gateway.MetadataBookingID: "507f1f77bcf86cd799439404"},
	}
	if err := reconciler.Apply(context.Background(), event); err != nil {
		t.Fatalf("events matching no booking must be acknowledged, got %v", err)
	}
	if len(repo.flaggedNotes) != 0 {
		t.Errorf("unmatched events must not flag anything, got %v", repo.flaggedNotes)
	}
}

func TestApply_UnknownEventTypeIsAcknowledged(t *testing.T) {
	booking := pendingBooking()
	repo := &mockBookingRepository{
		findByPaymentReferenceFunc: func(ctx context.Context, reference string) (*model.Booking, error) {
			return booking, nil
		},
	}
	reconciler := NewReconciler(repo, nil, &recordingPublisher{}, testConfig())

	event := &gateway.Event{Type: "subscription.renewed", Reference: "cs_test_123"}
	if err := reconciler.Apply(context.Background(), event); err != nil {
		t.Fatalf("unknown event types must be acknowledged, got %v", err)
	}
	if booking.Status != model.StatusPending {
		t.Errorf("booking status changed to %q", booking.Status)
	}
}
