package booking

import (
	"context"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

// DeadlineCursor is a keyset position over awaiting-payment bookings ordered
// by (payment deadline, id). The zero value starts before the first one.
type DeadlineCursor struct {
	Deadline time.Time
	ID       ID
}

func (c DeadlineCursor) IsZero() bool { return c.Deadline.IsZero() && c.ID == "" }

// Precedes reports whether the cursor sorts strictly before (deadline, id).
func (c DeadlineCursor) Precedes(deadline time.Time, id ID) bool {
	if c.IsZero() {
		return true
	}
	if !c.Deadline.Equal(deadline) {
		return c.Deadline.Before(deadline)
	}
	return c.ID < id
}

type ListFilter struct {
	Statuses []Status
	Limit    int
	Offset   int
}

// Repository persists bookings. Update is a compare-and-swap on status: it
// writes only when the stored status still equals expected and otherwise
// returns ErrConcurrentModification. Insert and Update return ErrUnavailable
// when the storage overlap guarantee rejects the row.
type Repository interface {
	Insert(ctx context.Context, b *Booking) error
	ByID(ctx context.Context, id ID) (*Booking, error)
	Update(ctx context.Context, b *Booking, expected Status) error
	ListByGuest(ctx context.Context, guestID string, filter ListFilter) ([]*Booking, error)
	ListByProperty(ctx context.Context, propertyID property.ID, filter ListFilter) ([]*Booking, error)
	ExpiredAwaitingPayment(ctx context.Context, now time.Time, after DeadlineCursor, limit int) ([]DeadlineCursor, error)
	BlockingOverlaps(ctx context.Context, propertyID property.ID, r daterange.DateRange, exclude ID) (bool, error)
}
