package events

import (
	"time"

	"github.com/google/uuid"
)

// Booking lifecycle event types published to the events topic and
// consumed by the notifier.
const (
	TypeBookingCreated     = "booking.created"
	TypeBookingApproved    = "booking.approved"
	TypePaymentFailed      = "booking.payment_failed"
	TypeBookingCancelled   = "booking.cancelled"
	TypeBookingCompleted   = "booking.completed"
	TypeBookingNeedsReview = "booking.needs_review"
)

// Header keys carried on every published message.
const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderSchemaVersion = "schema-version"
	HeaderSource        = "source"
	HeaderTimestamp     = "timestamp"
	HeaderRetryCount    = "retry-count"
	HeaderOriginalTopic = "original-topic"
)

const SchemaVersion = "1"

// BookingEvent is the payload for all booking lifecycle events. Events
// are keyed by booking ID so all events for one booking stay ordered
// within a partition.
type BookingEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	PatientID  string    `json:"patient_id"`
	DoctorID   string    `json:"doctor_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Status     string    `json:"status"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewBookingEvent(eventType, bookingID, patientID, doctorID, date, slotTime, status string) BookingEvent {
	return BookingEvent{
		EventID:    uuid.New().String(),
		Type:       eventType,
		BookingID:  bookingID,
		PatientID:  patientID,
		DoctorID:   doctorID,
		Date:       date,
		Time:       slotTime,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
}
