package model

import "testing"

func TestBooking_SlotBlocking(t *testing.T) {
	tests := []struct {
		name     string
		paid     bool
		status   string
		blocking bool
	}{
		{"paid approved holds slot", true, StatusApproved, true},
		{"paid pending holds slot", true, StatusPending, true},
		{"unpaid pending leaves slot open", false, StatusPending, false},
		{"unpaid approved leaves slot open", false, StatusApproved, false},
		{"paid completed leaves slot open", true, StatusCompleted, false},
		{"paid cancelled leaves slot open", true, StatusCancelled, false},
		{"unpaid cancelled leaves slot open", false, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Paid: tt.paid, Status: tt.status}
			if got := b.SlotBlocking(); got != tt.blocking {
				t.Errorf("SlotBlocking() = %v, want %v (paid=%v status=%s)", got, tt.blocking, tt.paid, tt.status)
			}
		})
	}
}

func TestBooking_PaymentState(t *testing.T) {
	b := &Booking{
		PaymentStatus:    PaymentPaid,
		Paid:             true,
		Status:           StatusApproved,
		PaymentReference: "cs_test_123",
		MeetingLink:      "https://meet.example.com/t/abc",
	}

	state := b.PaymentState()

	if state.PaymentStatus != PaymentPaid {
		t.Errorf("PaymentStatus = %q, want %q", state.PaymentStatus, PaymentPaid)
	}
	if !state.Paid {
		t.Error("Paid = false, want true")
	}
	if state.Status != StatusApproved {
		t.Errorf("Status = %q, want %q", state.Status, StatusApproved)
	}
	if state.PaymentReference != "cs_test_123" {
		t.Errorf("PaymentReference = %q, want %q", state.PaymentReference, "cs_test_123")
	}
}
