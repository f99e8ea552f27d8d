package model

import (
	"time"
)

// Booking lifecycle states.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Payment states recorded on a booking.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// Booking is an appointment request for a (doctor, date, time) slot.
// A slot is held exclusively only while paid == true and status is
// pending or approved; everything else leaves the slot open.
type Booking struct {
	ID        string  `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PatientID string  `json:"patient_id" bson:"patient_id" validate:"required,mongodb"`
	DoctorID  string  `json:"doctor_id" bson:"doctor_id" validate:"required,mongodb"`
	Date      string  `json:"date" bson:"slot_date" validate:"required,slot_date"`
	Time      string  `json:"time" bson:"slot_time" validate:"required,slot_time"`
	Issue     string  `json:"issue" bson:"issue" validate:"required,min=2,max=2000"`
	Amount    float64 `json:"amount" bson:"amount" validate:"required,gt=0"`

	MeetingLink string `json:"meeting_link,omitempty" bson:"meeting_link,omitempty"`

	PaymentStatus    string     `json:"payment_status" bson:"payment_status" validate:"required,oneof=pending paid failed refunded"`
	Paid             bool       `json:"paid" bson:"paid"`
	PaymentReference string     `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	TransactionAt    *time.Time `json:"transaction_at,omitempty" bson:"transaction_at,omitempty"`
	LastPaymentError string     `json:"last_payment_error,omitempty" bson:"last_payment_error,omitempty"`

	// NeedsReview marks bookings that received a payment success after
	// cancellation. They are never auto-approved; an operator decides.
	NeedsReview bool `json:"needs_review,omitempty" bson:"needs_review,omitempty"`

	Status    string    `json:"status" bson:"status" validate:"required,oneof=pending approved completed cancelled"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// SlotBlocking reports whether this booking currently holds its slot
// against other patients. Mirrors the partial unique index predicate.
func (b *Booking) SlotBlocking() bool {
	return b.Paid && (b.Status == StatusApproved || b.Status == StatusPending)
}

// PaymentState is the polling view returned after redirect-based checkout.
type PaymentState struct {
	PaymentStatus    string `json:"payment_status"`
	Paid             bool   `json:"paid"`
	Status           string `json:"status"`
	PaymentReference string `json:"payment_reference,omitempty"`
}

func (b *Booking) PaymentState() PaymentState {
	return PaymentState{
		PaymentStatus:    b.PaymentStatus,
		Paid:             b.Paid,
		Status:           b.Status,
		PaymentReference: b.PaymentReference,
	}
}
