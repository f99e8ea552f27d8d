package model

import "time"

// Doctor is a read-mostly directory entry patients browse before booking.
type Doctor struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name           string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Specialization string    `json:"specialization" bson:"specialization" validate:"required,min=2,max=100"`
	Bio            string    `json:"bio,omitempty" bson:"bio,omitempty" validate:"omitempty,max=2000"`
	Fee            float64   `json:"fee" bson:"fee" validate:"required,gt=0"`
	YearsOfExp     int       `json:"years_of_experience,omitempty" bson:"years_of_experience,omitempty" validate:"omitempty,min=0,max=70"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
