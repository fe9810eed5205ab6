package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

var ErrReadOnly = errors.New("memory: write in read-only unit")

type undo struct {
	id   booking.ID
	prev *booking.Booking
}

// Unit is a uow.UnitOfWork over a Store.
type Unit struct {
	store    *Store
	readOnly bool
	undo     []undo
	pending  []appoutbox.EventRecord
	done     bool
}

func (u *Unit) Bookings() booking.Repository       { return bookingRepo{u} }
func (u *Unit) Overrides() property.OverrideReader { return u.store }
func (u *Unit) Outbox() appoutbox.Outbox           { return unitOutbox{u} }

func (u *Unit) Commit(context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, rec := range u.pending {
		s.outbox = append(s.outbox, &outboxRow{record: rec, state: stateNew, nextAttempt: now})
	}
	u.pending = nil
	u.undo = nil
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		entry := u.undo[i]
		if entry.prev == nil {
			delete(s.bookings, entry.id)
			continue
		}
		s.bookings[entry.id] = entry.prev
	}
	u.pending = nil
	u.undo = nil
	return nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(_ context.Context, rec appoutbox.EventRecord) error {
	if o.u.readOnly {
		return ErrReadOnly
	}
	o.u.pending = append(o.u.pending, rec)
	return nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) Insert(_ context.Context, b *booking.Booking) error {
	if r.u.readOnly {
		return ErrReadOnly
	}
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.ID]; exists {
		return errors.New("memory: duplicate booking id")
	}
	if s.conflictLocked(b) {
		return booking.ErrUnavailable
	}
	s.bookings[b.ID] = b.Clone()
	r.u.undo = append(r.u.undo, undo{id: b.ID})
	return nil
}

func (r bookingRepo) ByID(_ context.Context, id booking.ID) (*booking.Booking, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return b.Clone(), nil
}

func (r bookingRepo) Update(_ context.Context, b *booking.Booking, expected booking.Status) error {
	if r.u.readOnly {
		return ErrReadOnly
	}
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.bookings[b.ID]
	if !ok || current.Status != expected {
		return booking.ErrConcurrentModification
	}
	if s.conflictLocked(b) {
		return booking.ErrUnavailable
	}
	s.bookings[b.ID] = b.Clone()
	r.u.undo = append(r.u.undo, undo{id: b.ID, prev: current})
	return nil
}

func (r bookingRepo) ListByGuest(_ context.Context, guestID string, filter booking.ListFilter) ([]*booking.Booking, error) {
	return r.list(func(b *booking.Booking) bool { return b.GuestID == guestID }, filter), nil
}

func (r bookingRepo) ListByProperty(_ context.Context, propertyID property.ID, filter booking.ListFilter) ([]*booking.Booking, error) {
	return r.list(func(b *booking.Booking) bool { return b.PropertyID == propertyID }, filter), nil
}

func (r bookingRepo) list(match func(*booking.Booking) bool, filter booking.ListFilter) []*booking.Booking {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[booking.Status]bool{}
	for _, st := range filter.Statuses {
		wanted[st] = true
	}
	var out []*booking.Booking
	for _, b := range s.bookings {
		if !match(b) || (len(wanted) > 0 && !wanted[b.Status]) {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (r bookingRepo) ExpiredAwaitingPayment(_ context.Context, now time.Time, after booking.DeadlineCursor, limit int) ([]booking.DeadlineCursor, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []booking.DeadlineCursor
	for _, b := range s.bookings {
		if b.Status != booking.StatusAwaitingPayment || b.Payment.Deadline == nil || !b.Payment.Deadline.Before(now) {
			continue
		}
		if after.Precedes(*b.Payment.Deadline, b.ID) {
			due = append(due, booking.DeadlineCursor{Deadline: *b.Payment.Deadline, ID: b.ID})
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Precedes(due[j].Deadline, due[j].ID)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r bookingRepo) BlockingOverlaps(_ context.Context, propertyID property.ID, dr daterange.DateRange, exclude booking.ID) (bool, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.bookings {
		if id == exclude || b.PropertyID != propertyID || !b.Status.IsBlocking() {
			continue
		}
		if b.Range.Overlaps(dr) {
			return true, nil
		}
	}
	return false, nil
}

var _ uow.UnitOfWork = (*Unit)(nil)
