package availability

import (
	"context"
	"fmt"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

// BookingLookup answers whether a blocking booking other than exclude
// shares a night with the range.
type BookingLookup interface {
	BlockingOverlaps(ctx context.Context, propertyID property.ID, r daterange.DateRange, exclude booking.ID) (bool, error)
}

type Reason string

const (
	ReasonAvailable   Reason = ""
	ReasonBooked      Reason = "booked"
	ReasonHostBlocked Reason = "host_blocked"
)

// Result explains a negative answer; BlockedDates lists host-blocked nights.
type Result struct {
	Available    bool
	Reason       Reason
	BlockedDates []string
}

type Checker struct {
	Bookings  BookingLookup
	Overrides property.OverrideReader
}

func NewChecker(bookings BookingLookup, overrides property.OverrideReader) Checker {
	return Checker{Bookings: bookings, Overrides: overrides}
}

// IsAvailable reports whether the property can take a stay over r. exclude is
// the booking being re-validated, if any.
func (c Checker) IsAvailable(ctx context.Context, propertyID property.ID, r daterange.DateRange, exclude booking.ID) (bool, error) {
	res, err := c.Check(ctx, propertyID, r, exclude)
	if err != nil {
		return false, err
	}
	return res.Available, nil
}

func (c Checker) Check(ctx context.Context, propertyID property.ID, r daterange.DateRange, exclude booking.ID) (Result, error) {
	if propertyID == "" {
		return Result{}, fmt.Errorf("%w: property id required", booking.ErrInvalidInput)
	}
	if err := r.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", booking.ErrInvalidInput, err)
	}
	if c.Overrides != nil {
		overrides, err := c.Overrides.Overrides(ctx, propertyID, r)
		if err != nil {
			return Result{}, fmt.Errorf("availability: load overrides: %w", err)
		}
		var blocked []string
		for _, o := range overrides {
			if o.Blocked && r.ContainsDate(o.Date) {
				blocked = append(blocked, daterange.Day(o.Date).Format(daterange.Layout))
			}
		}
		if len(blocked) > 0 {
			return Result{Reason: ReasonHostBlocked, BlockedDates: blocked}, nil
		}
	}
	overlaps, err := c.Bookings.BlockingOverlaps(ctx, propertyID, r, exclude)
	if err != nil {
		return Result{}, fmt.Errorf("availability: check bookings: %w", err)
	}
	if overlaps {
		return Result{Reason: ReasonBooked}, nil
	}
	return Result{Available: true}, nil
}
