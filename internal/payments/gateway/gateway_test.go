package gateway

import (
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid success event",
			body: `{"type":"payment_succeeded","reference":"cs_123","amount":150,"currency":"usd","occurred_at":"2099-01-10T12:00:00Z"}`,
		},
		{
			name: "valid failure event with reason",
			body: `{"type":"payment_failed","reference":"cs_123","reason":"card_declined"}`,
		},
		{
			name:    "not json",
			body:    `signature=abc&payload=`,
			wantErr: true,
		},
		{
			name:    "missing type",
			body:    `{"reference":"cs_123"}`,
			wantErr: true,
		},
		{
			name:    "missing reference",
			body:    `{"type":"payment_succeeded"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if event.Type == "" || event.Reference == "" {
				t.Errorf("parsed event incomplete: %+v", event)
			}
		})
	}
}

func TestParseEvent_BookingMetadata(t *testing.T) {
	body := `{"type":"payment_succeeded","reference":"cs_123","metadata":{"booking_id":"507f1f77bcf86cd799439099"}}`
	event, err := ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.BookingID() != "507f1f77bcf86cd799439099" {
		t.Errorf("BookingID() = %q, want the metadata booking id", event.BookingID())
	}

	bare, err := ParseEvent([]byte(`{"type":"payment_failed","reference":"cs_123"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bare.BookingID() != "" {
		t.Errorf("BookingID() = %q, want empty without metadata", bare.BookingID())
	}
}

func TestParseEvent_OccurredAt(t *testing.T) {
	body := `{"type":"session_completed","reference":"cs_123","amount":150,"occurred_at":"2099-01-10T12:00:00Z"}`
	event, err := ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2099, 1, 10, 12, 0, 0, 0, time.UTC)
	if !event.OccurredAt.Equal(want) {
		t.Errorf("OccurredAt = %v, want %v", event.OccurredAt, want)
	}
}
