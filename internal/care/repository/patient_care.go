package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"psycare/pkg/config"
	"psycare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "patient_care"
)

var ErrNotFound = errors.New("patient care record not found")

type mongoPatientCareRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// PatientCareRepository keeps one care document per patient, updated
// with atomic pushes so two doctors writing remarks never clobber each
// other.
type PatientCareRepository interface {
	FindByPatient(ctx context.Context, patientID string) (*model.PatientCare, error)
	AddRemark(ctx context.Context, patientID string, remark model.Remark) error
	AddMedication(ctx context.Context, patientID string, medication model.Medication) error
	SetMedicationStatus(ctx context.Context, patientID, medicationName, status string) error
	SetRiskLevel(ctx context.Context, patientID, riskLevel string) error
}

func NewMongoPatientCareRepository(cfg *config.Config) PatientCareRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPatientCareRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoPatientCareRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoPatientCareRepository) FindByPatient(ctx context.Context, patientID string) (*model.PatientCare, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoReadTimeout)
	defer cancel()

	var care model.PatientCare
	err := r.collection.FindOne(ctx, bson.M{"patient_id": patientID}).Decode(&care)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find patient care record: %w", err)
	}
	return &care, nil
}

func (r *mongoPatientCareRepository) AddRemark(ctx context.Context, patientID string, remark model.Remark) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	remark.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	update := bson.M{
		"$push": bson.M{"remarks": remark},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$setOnInsert": bson.M{
			"patient_id":  patientID,
			"medications": []model.Medication{},
			"risk_level":  "",
			"created_at":  time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"patient_id": patientID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to add remark: %w", err)
	}
	return nil
}

func (r *mongoPatientCareRepository) AddMedication(ctx context.Context, patientID string, medication model.Medication) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	if medication.StartDate.IsZero() {
		medication.StartDate = time.Now().UTC().Truncate(time.Millisecond)
	}

	update := bson.M{
		"$push": bson.M{"medications": medication},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$setOnInsert": bson.M{
			"patient_id": patientID,
			"remarks":    []model.Remark{},
			"risk_level": "",
			"created_at": time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"patient_id": patientID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to add medication: %w", err)
	}
	return nil
}

func (r *mongoPatientCareRepository) SetMedicationStatus(ctx context.Context, patientID, medicationName, status string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	filter := bson.M{
		"patient_id":       patientID,
		"medications.name": medicationName,
	}
	update := bson.M{"$set": bson.M{
		"medications.$.status": status,
		"updated_at":           time.Now().UTC(),
	}}
	if status != model.MedicationActive {
		now := time.Now().UTC()
		update["$set"].(bson.M)["medications.$.end_date"] = now
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update medication status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoPatientCareRepository) SetRiskLevel(ctx context.Context, patientID, riskLevel string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoWriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"patient_id": patientID},
		bson.M{"$set": bson.M{"risk_level": riskLevel, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set risk level: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
