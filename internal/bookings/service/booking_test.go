package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "psycare/internal/bookings/errors"
	"psycare/internal/bookings/validator"
	"psycare/pkg/config"
	mongotx "psycare/pkg/db/mongo"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/events"
	"psycare/pkg/logger"
	"psycare/pkg/model"
)

// ────────────────────────────────────────────────
// Mock repositories
// ────────────────────────────────────────────────

type mockBookingRepository struct {
	createFunc           func(ctx context.Context, booking *model.Booking) error
	findByIDFunc         func(ctx context.Context, id string) (*model.Booking, error)
	findSlotHolderFunc   func(ctx context.Context, doctorID, date, slotTime string) (*model.Booking, error)
	findBlockedTimesFunc func(ctx context.Context, doctorID, date string) ([]string, error)
	cancelFunc           func(ctx context.Context, id string) error
	completeFunc         func(ctx context.Context, id string) error
	countByDoctorFunc    func(ctx context.Context, doctorID string) (int64, error)
	findByDoctorFunc     func(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error)
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = "507f1f77bcf86cd799439099"
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Booking{ID: id, Status: model.StatusPending}, nil
}

func (m *mockBookingRepository) FindByPaymentReference(ctx context.Context, reference string) (*model.Booking, error) {
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindSlotHolder(ctx context.Context, doctorID, date, slotTime string) (*model.Booking, error) {
	if m.findSlotHolderFunc != nil {
		return m.findSlotHolderFunc(ctx, doctorID, date, slotTime)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error) {
	if m.findByDoctorFunc != nil {
		return m.findByDoctorFunc(ctx, doctorID, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	if m.countByDoctorFunc != nil {
		return m.countByDoctorFunc(ctx, doctorID)
	}
	return 0, nil
}

func (m *mockBookingRepository) FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) FindBlockedTimes(ctx context.Context, doctorID, date string) ([]string, error) {
	if m.findBlockedTimesFunc != nil {
		return m.findBlockedTimesFunc(ctx, doctorID, date)
	}
	return nil, nil
}

func (m *mockBookingRepository) SetPaymentReference(ctx context.Context, id, reference string) error {
	return nil
}

func (m *mockBookingRepository) MarkApproved(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
	return true, nil
}

func (m *mockBookingRepository) MarkPaymentFailed(ctx context.Context, id, reason string) (bool, error) {
	return true, nil
}

func (m *mockBookingRepository) MarkCancelledByGateway(ctx context.Context, id string) (bool, error) {
	return true, nil
}

func (m *mockBookingRepository) Cancel(ctx context.Context, id string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil
}

func (m *mockBookingRepository) Complete(ctx context.Context, id string) error {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, id)
	}
	return nil
}

func (m *mockBookingRepository) FlagNeedsReview(ctx context.Context, id, note string) error {
	return nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockSlotLockRepository struct {
	createFunc        func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	deleteFunc        func(ctx context.Context, lockID string) error
	deleteExpiredFunc func(ctx context.Context, lockID string) (bool, error)
	deleted           []string
}

func (m *mockSlotLockRepository) Create(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	return lock, nil
}

func (m *mockSlotLockRepository) Delete(ctx context.Context, lockID string) error {
	m.deleted = append(m.deleted, lockID)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, lockID)
	}
	return nil
}

func (m *mockSlotLockRepository) DeleteExpired(ctx context.Context, lockID string) (bool, error) {
	if m.deleteExpiredFunc != nil {
		return m.deleteExpiredFunc(ctx, lockID)
	}
	return false, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		DayStart:        "09:00",
		DayEnd:          "12:00",
		SlotDurationMin: 60,
	}
}

func newTestService(repo *mockBookingRepository, lockRepo *mockSlotLockRepository) BookingService {
	cfg := testConfig()
	return NewBookingService(repo, lockRepo, validator.NewBookingValidator(cfg.Log), events.NopPublisher{}, cfg)
}

func validBooking() *model.Booking {
	return &model.Booking{
		PatientID: "507f1f77bcf86cd799439011",
		DoctorID:  "507f191e810c19729de860ea",
		Date:      "2099-01-15",
		Time:      "10:00",
		Issue:     "Trouble sleeping and persistent anxiety",
		Amount:    150,
	}
}

func duplicateKeyErr() error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
	}
}

// ────────────────────────────────────────────────
// Request
// ────────────────────────────────────────────────

func TestRequest_ForcesPendingUnpaidDefaults(t *testing.T) {
	var created *model.Booking
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			created = booking
			booking.ID = "507f1f77bcf86cd799439099"
			return nil
		},
	}
	lockRepo := &mockSlotLockRepository{}
	svc := newTestService(repo, lockRepo)

	booking := validBooking()
	// A client must not be able to smuggle in a confirmed state.
	booking.Status = model.StatusApproved
	booking.Paid = true
	booking.PaymentStatus = model.PaymentPaid
	booking.PaymentReference = "cs_forged"
	booking.MeetingLink = "https://meet.example.com/t/forged"

	if err := svc.Request(context.Background(), booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if created.Status != model.StatusPending {
		t.Errorf("status = %q, want %q", created.Status, model.StatusPending)
	}
	if created.Paid {
		t.Error("paid = true, want false")
	}
	if created.PaymentStatus != model.PaymentPending {
		t.Errorf("payment_status = %q, want %q", created.PaymentStatus, model.PaymentPending)
	}
	if created.PaymentReference != "" || created.MeetingLink != "" {
		t.Error("payment reference and meeting link should be cleared on request")
	}
	if len(lockRepo.deleted) != 1 {
		t.Errorf("expected slot lock to be released once, got %d", len(lockRepo.deleted))
	}
}

func TestRequest_DiscardsClientSuppliedIdentity(t *testing.T) {
	var idAtInsert string
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			idAtInsert = booking.ID
			booking.ID = "507f1f77bcf86cd799439099"
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	booking := validBooking()
	// A posted id passes ObjectID validation but would be stored as a
	// string _id that id-based lookups can never match.
	booking.ID = "507f1f77bcf86cd799439777"
	stale := time.Date(2098, 12, 1, 9, 0, 0, 0, time.UTC)
	booking.TransactionAt = &stale
	booking.LastPaymentError = "card_declined"

	if err := svc.Request(context.Background(), booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idAtInsert != "" {
		t.Errorf("id at insert = %q, want empty so the store assigns it", idAtInsert)
	}
	if booking.ID != "507f1f77bcf86cd799439099" {
		t.Errorf("id = %q, want the store-assigned id", booking.ID)
	}
	if booking.TransactionAt != nil || booking.LastPaymentError != "" {
		t.Error("payment history fields must be cleared on request")
	}
}

func TestRequest_SlotAlreadyHeld(t *testing.T) {
	repo := &mockBookingRepository{
		findSlotHolderFunc: func(ctx context.Context, doctorID, date, slotTime string) (*model.Booking, error) {
			return &model.Booking{ID: "holder", Paid: true, Status: model.StatusApproved}, nil
		},
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			t.Error("Create should not be called when the slot is held")
			return nil
		},
	}
	lockRepo := &mockSlotLockRepository{}
	svc := newTestService(repo, lockRepo)

	err := svc.Request(context.Background(), validBooking())
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(lockRepo.deleted) != 1 {
		t.Error("slot lock must be released even when the request fails")
	}
}

func TestRequest_LockHeldByConcurrentRequest(t *testing.T) {
	repo := &mockBookingRepository{}
	lockRepo := &mockSlotLockRepository{
		createFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			return nil, duplicateKeyErr()
		},
	}
	svc := newTestService(repo, lockRepo)

	err := svc.Request(context.Background(), validBooking())
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestRequest_TakesOverExpiredLock(t *testing.T) {
	attempts := 0
	lockRepo := &mockSlotLockRepository{
		createFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			attempts++
			if attempts == 1 {
				return nil, duplicateKeyErr()
			}
			return lock, nil
		},
		deleteExpiredFunc: func(ctx context.Context, lockID string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(&mockBookingRepository{}, lockRepo)

	if err := svc.Request(context.Background(), validBooking()); err != nil {
		t.Fatalf("a leaked expired lock must not block the slot, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("lock create attempts = %d, want 2 (retry after takeover)", attempts)
	}
}

func TestRequest_LiveLockIsNotTakenOver(t *testing.T) {
	lockRepo := &mockSlotLockRepository{
		createFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			return nil, duplicateKeyErr()
		},
		deleteExpiredFunc: func(ctx context.Context, lockID string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(&mockBookingRepository{}, lockRepo)

	err := svc.Request(context.Background(), validBooking())
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict while the lock is live, got %v", err)
	}
}

func TestRequest_DuplicateKeyOnInsert(t *testing.T) {
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			return duplicateKeyErr()
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	err := svc.Request(context.Background(), validBooking())
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestRequest_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *model.Booking)
	}{
		{"missing patient", func(b *model.Booking) { b.PatientID = "" }},
		{"bad doctor id", func(b *model.Booking) { b.DoctorID = "not-an-object-id" }},
		{"non canonical date", func(b *model.Booking) { b.Date = "2099-1-5" }},
		{"bad time", func(b *model.Booking) { b.Time = "25:00" }},
		{"slot in the past", func(b *model.Booking) { b.Date = "2020-01-15" }},
		{"issue too short", func(b *model.Booking) { b.Issue = "x" }},
		{"zero amount", func(b *model.Booking) { b.Amount = 0 }},
	}

	svc := newTestService(&mockBookingRepository{
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			t.Error("Create should not be called for invalid bookings")
			return nil
		},
	}, &mockSlotLockRepository{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking := validBooking()
			tt.mutate(booking)

			err := svc.Request(context.Background(), booking)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeValidation {
				t.Errorf("code = %q, want %q (err: %v)", appErr.Code, apperrors.CodeValidation, err)
			}
		})
	}
}

// ────────────────────────────────────────────────
// Cancel / Complete
// ────────────────────────────────────────────────

func TestCancel_NotActive(t *testing.T) {
	repo := &mockBookingRepository{
		cancelFunc: func(ctx context.Context, id string) error {
			return bookingserrors.ErrNotActive
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	_, err := svc.Cancel(context.Background(), "507f1f77bcf86cd799439099")
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestComplete_OnlyApproved(t *testing.T) {
	repo := &mockBookingRepository{
		completeFunc: func(ctx context.Context, id string) error {
			return bookingserrors.ErrNotActive
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	_, err := svc.Complete(context.Background(), "507f1f77bcf86cd799439099")
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

// ────────────────────────────────────────────────
// AvailableSlots
// ────────────────────────────────────────────────

func TestAvailableSlots_GridMinusConfirmed(t *testing.T) {
	repo := &mockBookingRepository{
		findBlockedTimesFunc: func(ctx context.Context, doctorID, date string) ([]string, error) {
			return []string{"10:00"}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	slots, err := svc.AvailableSlots(context.Background(), "507f191e810c19729de860ea", "2099-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Slot{
		{Time: "09:00", Available: true},
		{Time: "10:00", Available: false},
		{Time: "11:00", Available: true},
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d: %v", len(slots), len(want), slots)
	}
	for i, w := range want {
		if slots[i] != w {
			t.Errorf("slot[%d] = %+v, want %+v", i, slots[i], w)
		}
	}
}

func TestAvailableSlots_BadDate(t *testing.T) {
	svc := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{})

	_, err := svc.AvailableSlots(context.Background(), "507f191e810c19729de860ea", "15/01/2099")
	if err == nil {
		t.Fatal("expected error for malformed date")
	}
	if apperrors.AsAppError(err).Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Listing
// ────────────────────────────────────────────────

func TestListByDoctor_ParallelCountAndFind(t *testing.T) {
	repo := &mockBookingRepository{
		countByDoctorFunc: func(ctx context.Context, doctorID string) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 42, nil
		},
		findByDoctorFunc: func(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Booking{{ID: "1"}, {ID: "2"}}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	bookings, count, err := svc.ListByDoctor(context.Background(), "507f191e810c19729de860ea", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
	if len(bookings) != 2 {
		t.Errorf("got %d bookings, want 2", len(bookings))
	}
}
