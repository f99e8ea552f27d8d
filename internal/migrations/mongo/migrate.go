package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"psycare/internal/migrations/mongo/validators"
)

var (
	// slotUniqueIndex is the backstop for the slot-collision guard: at
	// most one paid booking in a blocking status may exist per
	// (doctor, date, time). The transactional check-then-insert is the
	// primary guard; this index catches anything that slips through,
	// including concurrent payment approvals for the same slot.
	slotUniqueIndex = mongo.IndexModel{
		Keys: bson.D{
			{Key: "doctor_id", Value: 1},
			{Key: "slot_date", Value: 1},
			{Key: "slot_time", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetName("uniq_confirmed_slot").
			SetPartialFilterExpression(bson.M{
				"paid":   true,
				"status": bson.M{"$in": []string{"approved", "pending"}},
			}),
	}

	BookingsIndexes = []mongo.IndexModel{
		slotUniqueIndex,
		{
			Keys: bson.D{{Key: "payment_reference", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_payment_reference").
				SetPartialFilterExpression(bson.M{
					"payment_reference": bson.M{"$exists": true},
				}),
		},
		{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "slot_date", Value: 1}}},
		{Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "slot_date", Value: 1}}},
	}

	DoctorsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "specialization", Value: 1}, {Key: "name", Value: 1}}},
	}

	PatientCareIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "patient_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_patient_care"),
		},
	}

	ReviewsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_review_booking"),
		},
		{Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	// Advisory locks expire on their own so a crashed request cannot
	// wedge a slot.
	SlotLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_slot_locks"),
		},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("Running Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"bookings": {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		"doctors": {
			Indexes:   DoctorsIndexes,
			Validator: validators.DoctorValidator,
		},
		"patient_care": {
			Indexes:   PatientCareIndexes,
			Validator: validators.PatientCareValidator,
		},
		"reviews": {
			Indexes:   ReviewsIndexes,
			Validator: validators.ReviewValidator,
		},
		"slot_locks": {
			Indexes: SlotLocksIndexes,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("Creating collection: %s\n", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts = opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else if validator != nil {
		fmt.Printf("Collection %s already exists, updating validator\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("Ensured indexes for %s\n", name)
	return nil
}
