package model

import "time"

// SlotLock is an advisory lock taken while a booking request for one
// (doctor, date, time) slot is in flight. The _id is the slot key, so a
// concurrent insert for the same slot fails with a duplicate key error.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
