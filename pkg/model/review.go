package model

import "time"

// Review is a patient's rating of a completed appointment. One review
// per booking, enforced by a unique index on booking_id.
type Review struct {
	ID        string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BookingID string `json:"booking_id" bson:"booking_id" validate:"required,mongodb"`
	DoctorID  string `json:"doctor_id" bson:"doctor_id" validate:"required,mongodb"`
	PatientID string `json:"patient_id" bson:"patient_id" validate:"required,mongodb"`
	Rating    int    `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" bson:"comment" validate:"required,min=10,max=500"`

	// Helpful counts reader upvotes. Verified marks reviews submitted
	// against a completed booking, which is the only path this service
	// offers; the flag survives for imported legacy reviews.
	Helpful  int  `json:"helpful" bson:"helpful"`
	Verified bool `json:"verified" bson:"verified"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// DoctorStats is the aggregated rating view shown on the directory.
// Computed from reviews on read; never stored, so it cannot drift.
type DoctorStats struct {
	DoctorID           string        `json:"doctor_id"`
	TotalReviews       int64         `json:"total_reviews"`
	AverageRating      float64       `json:"average_rating"`
	RatingDistribution map[int]int64 `json:"rating_distribution"`
}
