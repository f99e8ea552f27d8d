package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "psycare/internal/bookings/errors"
	"psycare/internal/bookings/repository"
	"psycare/internal/bookings/validator"
	"psycare/pkg/config"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/events"
	"psycare/pkg/model"
	"psycare/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// Slot is one bookable time on a doctor's day.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type BookingService interface {
	Request(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, int64, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	Complete(ctx context.Context, id string) (*model.Booking, error)
	AvailableSlots(ctx context.Context, doctorID, date string) ([]Slot, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.SlotLockRepository
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.SlotLockRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Request records a new appointment request in pending, unpaid state.
// The slot is checked against confirmed holders inside a transaction so
// two patients cannot both pass the check; the advisory lock narrows
// the window further for concurrent submissions of the same slot.
func (s *bookingService) Request(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)
	s.sanitize(booking)
	if err := s.validate(booking); err != nil {
		return err
	}

	lockID, err := s.acquireSlotLock(ctx, booking.DoctorID, booking.Date, booking.Time)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseSlotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifySlotFree(sessCtx, booking); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return apperrors.Conflict("This slot has just been taken. Please choose another time.")
			}
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return err
	}

	s.publish(ctx, events.TypeBookingCreated, booking)

	s.cfg.Log.Info("Booking requested successfully",
		"id", booking.ID,
		"doctor_id", booking.DoctorID,
		"date", booking.Date,
		"time", booking.Time,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return booking, nil
}

func (s *bookingService) ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if doctorID == "" {
		return nil, 0, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	return s.list(ctx, limit, offset,
		func(ctx context.Context) (int64, error) { return s.repo.CountByDoctor(ctx, doctorID) },
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByDoctor(ctx, doctorID, limit, offset)
		},
	)
}

func (s *bookingService) ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if patientID == "" {
		return nil, 0, apperrors.InvalidInput("Patient ID cannot be empty")
	}
	return s.list(ctx, limit, offset,
		func(ctx context.Context) (int64, error) { return s.repo.CountByPatient(ctx, patientID) },
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByPatient(ctx, patientID, limit, offset)
		},
	)
}

func (s *bookingService) list(
	ctx context.Context,
	limit int,
	offset int64,
	countFn func(context.Context) (int64, error),
	findFn func(context.Context) ([]*model.Booking, error),
) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = countFn(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = findFn(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// Cancel frees the slot. Cancelled bookings never return to a blocking
// status, even if a payment success arrives afterwards.
func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	if err := s.repo.Cancel(ctx, id); err != nil {
		if errors.Is(err, bookingserrors.ErrNotActive) {
			return nil, apperrors.Conflict("Booking is not active and cannot be cancelled")
		}
		return nil, s.mapLookupError(err, id)
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	s.publish(ctx, events.TypeBookingCancelled, booking)

	s.cfg.Log.Info("Booking cancelled", "id", id)
	return booking, nil
}

func (s *bookingService) Complete(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	if err := s.repo.Complete(ctx, id); err != nil {
		if errors.Is(err, bookingserrors.ErrNotActive) {
			return nil, apperrors.Conflict("Only approved bookings can be completed")
		}
		return nil, s.mapLookupError(err, id)
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	s.publish(ctx, events.TypeBookingCompleted, booking)

	s.cfg.Log.Info("Booking completed", "id", id)
	return booking, nil
}

// AvailableSlots lays the configured day grid over the doctor's
// confirmed bookings for the date.
func (s *bookingService) AvailableSlots(ctx context.Context, doctorID, date string) ([]Slot, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, apperrors.InvalidInput("Date must be in YYYY-MM-DD format")
	}

	blocked, err := s.repo.FindBlockedTimes(ctx, doctorID, date)
	if err != nil {
		s.cfg.Log.Error("Failed to load blocked times", "doctor_id", doctorID, "date", date, "error", err)
		return nil, apperrors.Internal("Failed to load availability", err)
	}

	taken := make(map[string]struct{}, len(blocked))
	for _, t := range blocked {
		taken[t] = struct{}{}
	}

	dayStart, _ := time.Parse("15:04", s.cfg.DayStart)
	dayEnd, _ := time.Parse("15:04", s.cfg.DayEnd)
	step := time.Duration(s.cfg.SlotDurationMin) * time.Minute

	var slots []Slot
	for t := dayStart; t.Before(dayEnd); t = t.Add(step) {
		slotTime := t.Format("15:04")
		_, isTaken := taken[slotTime]
		slots = append(slots, Slot{Time: slotTime, Available: !isTaken})
	}

	return slots, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(b *model.Booking) {
	b.Issue = sanitizer.NormalizeIssue(b.Issue)
}

// applyDefaults resets everything the client has no business setting.
// The id in particular must come from the store: a client-chosen hex id
// would be inserted as a string and never match ObjectID lookups.
func (s *bookingService) applyDefaults(b *model.Booking) {
	b.ID = ""
	b.Status = model.StatusPending
	b.PaymentStatus = model.PaymentPending
	b.Paid = false
	b.PaymentReference = ""
	b.MeetingLink = ""
	b.TransactionAt = nil
	b.LastPaymentError = ""
	b.NeedsReview = false
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *bookingService) verifySlotFree(ctx context.Context, booking *model.Booking) error {
	holder, err := s.repo.FindSlotHolder(ctx, booking.DoctorID, booking.Date, booking.Time)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil
		}
		return apperrors.Internal("Failed to check slot availability", err)
	}
	if holder != nil {
		return apperrors.Conflict(fmt.Sprintf(
			"Slot %s %s is already booked for this doctor",
			booking.Date, booking.Time,
		))
	}
	return nil
}

func (s *bookingService) mapLookupError(err error, id string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}

func (s *bookingService) publish(ctx context.Context, eventType string, b *model.Booking) {
	event := events.NewBookingEvent(eventType, b.ID, b.PatientID, b.DoctorID, b.Date, b.Time, b.Status)
	event.Amount = b.Amount
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", b.ID,
			"error", err,
		)
	}
}

// acquireSlotLock creates an advisory lock for one slot coordinate.
// Returns conflict if another request currently holds it.
func (s *bookingService) acquireSlotLock(ctx context.Context, doctorID, date, slotTime string) (string, error) {
	lockID := fmt.Sprintf("slot_%s_%s_%s", doctorID, date, slotTime)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(10 * time.Second),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if mongo.IsDuplicateKeyError(err) {
		// A lock leaked by a crashed request sits in the collection
		// until the TTL monitor sweeps, which can take a minute. Take
		// over locks whose expiry has already passed instead of
		// blocking the slot for that long.
		taken, delErr := s.lockRepo.DeleteExpired(ctx, lockID)
		if delErr == nil && taken {
			s.cfg.Log.Warn("Took over expired slot lock", "lock_id", lockID)
			_, err = s.lockRepo.Create(ctx, lock)
		}
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

func (s *bookingService) releaseSlotLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}
