package booking

import (
	"context"
	"fmt"
	"strings"

	"staybook/internal/app/dto"
	"staybook/internal/app/lifecycle"
	"staybook/internal/app/policies"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

const (
	getBookingKey           = "booking.get"
	listGuestBookingsKey    = "me.bookings.list"
	listPropertyBookingsKey = "host.property_bookings.list"
	defaultListLimit        = 50
	maxListLimit            = 200
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string        { return getBookingKey }
func (q GetBookingQuery) Action() string     { return policies.ActionBookingRead }
func (q GetBookingQuery) BookingRef() string { return q.BookingID }

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
	Status  string
	Limit   int `validate:"gte=0"`
	Offset  int `validate:"gte=0"`
}

func (q ListGuestBookingsQuery) Key() string      { return listGuestBookingsKey }
func (q ListGuestBookingsQuery) Action() string   { return policies.ActionBookingListMine }
func (q ListGuestBookingsQuery) GuestRef() string { return q.GuestID }

type ListPropertyBookingsQuery struct {
	PropertyID string `validate:"required"`
	Status     string
	Limit      int `validate:"gte=0"`
	Offset     int `validate:"gte=0"`
}

func (q ListPropertyBookingsQuery) Key() string         { return listPropertyBookingsKey }
func (q ListPropertyBookingsQuery) Action() string      { return policies.ActionPropertyList }
func (q ListPropertyBookingsQuery) PropertyRef() string { return q.PropertyID }

type ReadHandler struct {
	Engine *lifecycle.Engine
}

func (h *ReadHandler) Get(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	return mapped(h.Engine.Get(ctx, domainbooking.ID(q.BookingID)))
}

func (h *ReadHandler) ListForGuest(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	filter, err := listFilter(q.Status, q.Limit, q.Offset)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	items, err := h.Engine.ListByGuest(ctx, q.GuestID, filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookings(items), nil
}

func (h *ReadHandler) ListForProperty(ctx context.Context, q ListPropertyBookingsQuery) (dto.BookingCollection, error) {
	filter, err := listFilter(q.Status, q.Limit, q.Offset)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	items, err := h.Engine.ListByProperty(ctx, property.ID(q.PropertyID), filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookings(items), nil
}

// listFilter accepts a comma separated status list; empty means all.
func listFilter(status string, limit, offset int) (domainbooking.ListFilter, error) {
	filter := domainbooking.ListFilter{Limit: limit, Offset: offset}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	for _, raw := range strings.Split(status, ",") {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		s, ok := domainbooking.ParseStatus(raw)
		if !ok {
			return domainbooking.ListFilter{}, fmt.Errorf("%w: unknown status %q", domainbooking.ErrInvalidInput, raw)
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	return filter, nil
}
