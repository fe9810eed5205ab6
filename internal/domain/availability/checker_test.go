package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

type stubBookings struct {
	rows []*booking.Booking
	err  error
}

func (s stubBookings) BlockingOverlaps(_ context.Context, propertyID property.ID, r daterange.DateRange, exclude booking.ID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for _, b := range s.rows {
		if b.PropertyID == propertyID && b.ID != exclude && b.Status.IsBlocking() && b.Range.Overlaps(r) {
			return true, nil
		}
	}
	return false, nil
}

type stubOverrides []property.Override

func (s stubOverrides) Overrides(_ context.Context, id property.ID, r daterange.DateRange) ([]property.Override, error) {
	var out []property.Override
	for _, o := range s {
		if o.PropertyID == id && r.ContainsDate(o.Date) {
			out = append(out, o)
		}
	}
	return out, nil
}

func rng(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return dr
}

func TestIsAvailableHonoursHalfOpenRanges(t *testing.T) {
	confirmed := &booking.Booking{ID: "bk-1", PropertyID: "P", Range: rng(t, "2025-06-01", "2025-06-05"), Status: booking.StatusConfirmed}
	checker := NewChecker(stubBookings{rows: []*booking.Booking{confirmed}}, nil)
	ctx := context.Background()

	ok, err := checker.IsAvailable(ctx, "P", rng(t, "2025-06-03", "2025-06-07"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected overlap to make range unavailable")
	}
	ok, err = checker.IsAvailable(ctx, "P", rng(t, "2025-06-05", "2025-06-10"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected check-out day to be free")
	}
	ok, _ = checker.IsAvailable(ctx, "P", rng(t, "2025-06-03", "2025-06-07"), "bk-1")
	if !ok {
		t.Fatalf("expected excluded booking to be ignored")
	}
}

func TestIsAvailableIgnoresNonBlockingStatuses(t *testing.T) {
	for _, status := range []booking.Status{booking.StatusCancelled, booking.StatusCompleted, booking.StatusExpired, booking.StatusPaymentFailed} {
		rows := []*booking.Booking{{ID: "bk", PropertyID: "P", Range: rng(t, "2025-06-01", "2025-06-05"), Status: status}}
		ok, err := NewChecker(stubBookings{rows: rows}, nil).IsAvailable(context.Background(), "P", rng(t, "2025-06-02", "2025-06-03"), "")
		if err != nil || !ok {
			t.Fatalf("%s: expected available, got %v %v", status, ok, err)
		}
	}
}

func TestCheckReportsHostBlockedDates(t *testing.T) {
	overrides := stubOverrides{
		{PropertyID: "P", Date: time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC), Blocked: true},
		{PropertyID: "P", Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Blocked: false},
	}
	checker := NewChecker(stubBookings{}, overrides)
	res, err := checker.Check(context.Background(), "P", rng(t, "2025-06-01", "2025-06-05"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Available || res.Reason != ReasonHostBlocked {
		t.Fatalf("expected host_blocked, got %+v", res)
	}
	if len(res.BlockedDates) != 1 || res.BlockedDates[0] != "2025-06-04" {
		t.Fatalf("expected 2025-06-04 blocked, got %v", res.BlockedDates)
	}
	res, _ = checker.Check(context.Background(), "P", rng(t, "2025-06-05", "2025-06-08"), "")
	if !res.Available {
		t.Fatalf("expected range after the blocked night to be free")
	}
}

func TestCheckRejectsMalformedInput(t *testing.T) {
	checker := NewChecker(stubBookings{}, nil)
	bad := daterange.DateRange{CheckIn: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), CheckOut: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := checker.IsAvailable(context.Background(), "P", bad, ""); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := checker.IsAvailable(context.Background(), "", rng(t, "2025-06-01", "2025-06-02"), ""); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing property, got %v", err)
	}
}

func TestCheckPropagatesLookupErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewChecker(stubBookings{err: boom}, nil).IsAvailable(context.Background(), "P", rng(t, "2025-06-01", "2025-06-02"), "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}
