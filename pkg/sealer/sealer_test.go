package sealer

import (
	"encoding/base64"
	"testing"
)

func testKey(t *testing.T, size int) string {
	t.Helper()
	key := make([]byte, size)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNew_KeySizes(t *testing.T) {
	for _, size := range []int{16, 24, 32} {
		if _, err := New(testKey(t, size)); err != nil {
			t.Errorf("New with %d byte key: %v", size, err)
		}
	}

	if _, err := New(testKey(t, 20)); err == nil {
		t.Error("expected error for 20 byte key")
	}
	if _, err := New("not base64 !!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	s, err := New(testKey(t, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bookingID := "507f1f77bcf86cd799439099"
	slotKey := "507f191e810c19729de860ea_2099-01-15_10:00"

	token, err := s.Seal(bookingID, slotKey)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	gotID, gotSlot, err := s.Open(token)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if gotID != bookingID {
		t.Errorf("booking ID = %q, want %q", gotID, bookingID)
	}
	if gotSlot != slotKey {
		t.Errorf("slot key = %q, want %q", gotSlot, slotKey)
	}
}

func TestSeal_TokensAreUnique(t *testing.T) {
	s, _ := New(testKey(t, 16))

	a, _ := s.Seal("booking", "slot")
	b, _ := s.Seal("booking", "slot")
	if a == b {
		t.Error("two seals of the same payload produced identical tokens")
	}
}

func TestOpen_RejectsForeignTokens(t *testing.T) {
	s1, _ := New(testKey(t, 32))
	s2, _ := New(base64.StdEncoding.EncodeToString(make([]byte, 32)))

	token, err := s1.Seal("booking", "slot")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, _, err := s2.Open(token); err == nil {
		t.Error("token sealed with another key must not open")
	}
	if _, _, err := s1.Open("tampered" + token); err == nil {
		t.Error("tampered token must not open")
	}
	if _, _, err := s1.Open("short"); err == nil {
		t.Error("truncated token must not open")
	}
}
