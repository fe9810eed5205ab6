package booking

import "testing"

func TestCreateIdempotencyKeyIsScopedToGuest(t *testing.T) {
	a := CreateBookingCommand{GuestID: "guest-1", ClientKey: "retry-1"}
	b := CreateBookingCommand{GuestID: "guest-2", ClientKey: "retry-1"}
	if a.IdempotencyKey() == b.IdempotencyKey() {
		t.Fatalf("expected distinct keys per guest, got %q", a.IdempotencyKey())
	}
	if a.IdempotencyKey() != "guest-1:retry-1" {
		t.Fatalf("unexpected key %q", a.IdempotencyKey())
	}
	if (CreateBookingCommand{GuestID: "guest-1"}).IdempotencyKey() != "" {
		t.Fatalf("expected empty key without a client key")
	}
}
