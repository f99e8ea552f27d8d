package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "psycare/internal/bookings/errors"
	"psycare/pkg/config"
	mongotx "psycare/pkg/db/mongo"
	"psycare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "bookings"
)

// blockingStatuses are the booking statuses that hold a slot. Together
// with paid=true they form the slot-uniqueness predicate, mirrored by
// the partial unique index on (doctor_id, slot_date, slot_time).
var blockingStatuses = []string{model.StatusApproved, model.StatusPending}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByPaymentReference(ctx context.Context, reference string) (*model.Booking, error)
	FindSlotHolder(ctx context.Context, doctorID, date, slotTime string) (*model.Booking, error)
	FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error)
	CountByDoctor(ctx context.Context, doctorID string) (int64, error)
	FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, error)
	CountByPatient(ctx context.Context, patientID string) (int64, error)
	FindBlockedTimes(ctx context.Context, doctorID, date string) ([]string, error)
	SetPaymentReference(ctx context.Context, id, reference string) error
	MarkApproved(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error)
	MarkPaymentFailed(ctx context.Context, id, reason string) (bool, error)
	MarkCancelledByGateway(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	FlagNeedsReview(ctx context.Context, id, note string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByPaymentReference(ctx context.Context, reference string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"payment_reference": reference}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking by payment reference: %w", err)
	}

	return &booking, nil
}

// FindSlotHolder returns the booking currently holding the slot, if any.
// Only paid bookings in a blocking status count; an unpaid pending
// booking does not reserve the slot.
func (r *mongoBookingRepository) FindSlotHolder(ctx context.Context, doctorID, date, slotTime string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id": doctorID,
		"slot_date": date,
		"slot_time": slotTime,
		"paid":      true,
		"status":    bson.M{"$in": blockingStatuses},
	}

	var booking model.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot holder: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findByField(ctx, "doctor_id", doctorID, limit, offset)
}

func (r *mongoBookingRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	return r.countByField(ctx, "doctor_id", doctorID)
}

func (r *mongoBookingRepository) FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findByField(ctx, "patient_id", patientID, limit, offset)
}

func (r *mongoBookingRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	return r.countByField(ctx, "patient_id", patientID)
}

func (r *mongoBookingRepository) findByField(ctx context.Context, field, value string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "slot_date", Value: 1}, {Key: "slot_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{field: value}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) countByField(ctx context.Context, field, value string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{field: value})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindBlockedTimes(ctx context.Context, doctorID, date string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id": doctorID,
		"slot_date": date,
		"paid":      true,
		"status":    bson.M{"$in": blockingStatuses},
	}

	values, err := r.collection.Distinct(ctx, "slot_time", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find blocked times: %w", err)
	}

	times := make([]string, 0, len(values))
	for _, v := range values {
		if t, ok := v.(string); ok {
			times = append(times, t)
		}
	}
	return times, nil
}

func (r *mongoBookingRepository) SetPaymentReference(ctx context.Context, id, reference string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	update := bson.M{"$set": bson.M{
		"payment_reference": reference,
		"updated_at":        time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

// MarkApproved is the payment success transition. It only matches while
// the booking is still pending, so webhook replays and late duplicates
// are no-ops: the first delivery wins and the stored meeting link is
// never reminted. Returns false when nothing matched.
func (r *mongoBookingRepository) MarkApproved(ctx context.Context, id string, amount float64, transactionAt time.Time, meetingLink string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.StatusPending}
	update := bson.M{"$set": bson.M{
		"status":             model.StatusApproved,
		"payment_status":     model.PaymentPaid,
		"paid":               true,
		"amount":             amount,
		"transaction_at":     transactionAt,
		"meeting_link":       meetingLink,
		"last_payment_error": "",
		"updated_at":         time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking approved: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (r *mongoBookingRepository) MarkPaymentFailed(ctx context.Context, id, reason string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.StatusPending}
	update := bson.M{"$set": bson.M{
		"payment_status":     model.PaymentFailed,
		"paid":               false,
		"last_payment_error": reason,
		"updated_at":         time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (r *mongoBookingRepository) MarkCancelledByGateway(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.StatusPending}
	result, err := r.collection.UpdateOne(ctx, filter, gatewayCancellationUpdate())
	if err != nil {
		return false, fmt.Errorf("failed to mark booking cancelled: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// gatewayCancellationUpdate releases the slot without recording a
// payment failure: a cancelled checkout means no charge was attempted,
// so the payment state stays pending.
func gatewayCancellationUpdate() bson.M {
	return bson.M{"$set": bson.M{
		"status":         model.StatusCancelled,
		"payment_status": model.PaymentPending,
		"paid":           false,
		"updated_at":     time.Now().UTC(),
	}}
}

func (r *mongoBookingRepository) Cancel(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": []string{model.StatusPending, model.StatusApproved}},
	}
	update := bson.M{"$set": bson.M{
		"status":     model.StatusCancelled,
		"updated_at": time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return bookingserrors.ErrNotActive
	}
	return nil
}

func (r *mongoBookingRepository) Complete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.StatusApproved}
	update := bson.M{"$set": bson.M{
		"status":     model.StatusCompleted,
		"updated_at": time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to complete booking: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return bookingserrors.ErrNotActive
	}
	return nil
}

func (r *mongoBookingRepository) FlagNeedsReview(ctx context.Context, id, note string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	update := bson.M{"$set": bson.M{
		"needs_review":       true,
		"last_payment_error": note,
		"updated_at":         time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to flag booking for review: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
