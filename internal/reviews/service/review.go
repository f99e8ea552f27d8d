package service

import (
	"context"
	"errors"
	"math"
	"sync"

	bookingserrors "psycare/internal/bookings/errors"
	reviewserrors "psycare/internal/reviews/errors"
	"psycare/internal/reviews/repository"
	"psycare/internal/reviews/validator"
	"psycare/pkg/config"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/model"
	"psycare/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// Reasons surfaced on the eligibility check. The UI shows these
// verbatim, so they stay short and user-facing.
const (
	ReasonBookingNotFound = "Booking not found"
	ReasonNotYourBooking  = "Not your booking"
	ReasonNotCompleted    = "Appointment not yet completed"
	ReasonAlreadyReviewed = "Already reviewed"
)

// Eligibility answers "can this patient review this booking right now".
type Eligibility struct {
	CanReview bool   `json:"can_review"`
	Reason    string `json:"reason,omitempty"`
}

// BookingFinder is the slice of the bookings repository reviews need.
type BookingFinder interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
}

type ReviewService interface {
	Submit(ctx context.Context, review *model.Review) error
	ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Review, int64, error)
	StatsByDoctor(ctx context.Context, doctorID string) (*model.DoctorStats, error)
	CheckEligibility(ctx context.Context, bookingID, patientID string) (*Eligibility, error)
	MarkHelpful(ctx context.Context, id string) (int, error)
}

type reviewService struct {
	repo      repository.ReviewRepository
	bookings  BookingFinder
	validator *validator.ReviewValidator
	cfg       *config.Config
}

func NewReviewService(repo repository.ReviewRepository, bookings BookingFinder, validator *validator.ReviewValidator, cfg *config.Config) ReviewService {
	return &reviewService{
		repo:      repo,
		bookings:  bookings,
		validator: validator,
		cfg:       cfg,
	}
}

// Submit creates a review for a completed booking. The doctor is taken
// from the booking, never from the request, and the review is marked
// verified because the completed-booking check is the only way in.
func (s *reviewService) Submit(ctx context.Context, review *model.Review) error {
	s.applyDefaults(review)

	booking, err := s.bookings.FindByID(ctx, review.BookingID)
	if err != nil {
		return s.mapBookingLookupError(err, review.BookingID)
	}

	if booking.PatientID != review.PatientID {
		return apperrors.Forbidden("You can only review your own bookings")
	}
	if booking.Status != model.StatusCompleted {
		return apperrors.Conflict("Only completed appointments can be reviewed")
	}

	review.DoctorID = booking.DoctorID
	review.Verified = true

	if err := s.validator.Validate(review); err != nil {
		s.cfg.Log.Warn("Review validation failed", "booking_id", review.BookingID, "error", err)
		return apperrors.Validation("Review validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("This booking has already been reviewed")
		}
		s.cfg.Log.Error("Failed to create review", "booking_id", review.BookingID, "error", err)
		return apperrors.Internal("Failed to create review", err)
	}

	s.cfg.Log.Info("Review created", "id", review.ID, "booking_id", review.BookingID, "doctor_id", review.DoctorID, "rating", review.Rating)
	return nil
}

func (s *reviewService) ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Review, int64, error) {
	if doctorID == "" {
		return nil, 0, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	var count int64
	var reviews []*model.Review
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByDoctor(ctx, doctorID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reviews", "doctor_id", doctorID, "error", errCount)
			errCount = apperrors.Internal("Failed to count reviews", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reviews, errFind = s.repo.FindByDoctor(ctx, doctorID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reviews", "doctor_id", doctorID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reviews", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reviews, count, nil
}

// StatsByDoctor derives the rating summary from the stored reviews.
// The average is rounded to one decimal and the distribution always
// carries all five buckets.
func (s *reviewService) StatsByDoctor(ctx context.Context, doctorID string) (*model.DoctorStats, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	counts, err := s.repo.RatingCounts(ctx, doctorID)
	if err != nil {
		s.cfg.Log.Error("Failed to aggregate review stats", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to compute doctor stats", err)
	}

	stats := &model.DoctorStats{
		DoctorID:           doctorID,
		RatingDistribution: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	var sum int64
	for _, bucket := range counts {
		if bucket.Rating < 1 || bucket.Rating > 5 {
			continue
		}
		stats.RatingDistribution[bucket.Rating] = bucket.Count
		stats.TotalReviews += bucket.Count
		sum += int64(bucket.Rating) * bucket.Count
	}

	if stats.TotalReviews > 0 {
		avg := float64(sum) / float64(stats.TotalReviews)
		stats.AverageRating = math.Round(avg*10) / 10
	}

	return stats, nil
}

// CheckEligibility reports whether the patient may review the booking
// and, if not, why. A negative answer is a normal result, not an error.
func (s *reviewService) CheckEligibility(ctx context.Context, bookingID, patientID string) (*Eligibility, error) {
	if bookingID == "" || patientID == "" {
		return nil, apperrors.InvalidInput("Booking ID and patient ID are required")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
			return &Eligibility{Reason: ReasonBookingNotFound}, nil
		}
		return nil, apperrors.Internal("Failed to look up booking", err)
	}

	if booking.PatientID != patientID {
		return &Eligibility{Reason: ReasonNotYourBooking}, nil
	}
	if booking.Status != model.StatusCompleted {
		return &Eligibility{Reason: ReasonNotCompleted}, nil
	}

	_, err = s.repo.FindByBooking(ctx, bookingID)
	if err == nil {
		return &Eligibility{Reason: ReasonAlreadyReviewed}, nil
	}
	if !errors.Is(err, reviewserrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to look up existing review", err)
	}

	return &Eligibility{CanReview: true}, nil
}

func (s *reviewService) MarkHelpful(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, apperrors.InvalidInput("Review ID cannot be empty")
	}

	helpful, err := s.repo.MarkHelpful(ctx, id)
	if err != nil {
		if errors.Is(err, reviewserrors.ErrNotFound) {
			return 0, apperrors.NotFoundWithID("Review", id)
		}
		if errors.Is(err, reviewserrors.ErrInvalidID) {
			return 0, apperrors.InvalidInput("Invalid review ID format")
		}
		s.cfg.Log.Error("Failed to mark review helpful", "id", id, "error", err)
		return 0, apperrors.Internal("Failed to mark review helpful", err)
	}

	return helpful, nil
}

// applyDefaults resets everything the store or the booking owns.
func (s *reviewService) applyDefaults(review *model.Review) {
	review.ID = ""
	review.Helpful = 0
	review.Verified = false
	review.Comment = sanitizer.TrimAndNormalize(review.Comment)
}

func (s *reviewService) mapBookingLookupError(err error, bookingID string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", bookingID)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to look up booking", err)
}
