package availability

import (
	"context"
	"fmt"
	"log/slog"

	"staybook/internal/app/dto"
	"staybook/internal/app/lifecycle"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

const (
	checkAvailabilityKey = "property.availability.check"
	quoteStayKey         = "property.quote"
)

type CheckAvailabilityQuery struct {
	PropertyID string `validate:"required"`
	CheckIn    string `validate:"required,datetime=2006-01-02"`
	CheckOut   string `validate:"required,datetime=2006-01-02"`
}

func (q CheckAvailabilityQuery) Key() string    { return checkAvailabilityKey }
func (q CheckAvailabilityQuery) Action() string { return policies.ActionAvailability }

type QuoteStayQuery struct {
	PropertyID string `validate:"required"`
	CheckIn    string `validate:"required,datetime=2006-01-02"`
	CheckOut   string `validate:"required,datetime=2006-01-02"`
}

func (q QuoteStayQuery) Key() string    { return quoteStayKey }
func (q QuoteStayQuery) Action() string { return policies.ActionQuote }

type CheckAvailabilityHandler struct {
	Engine *lifecycle.Engine
	Logger *slog.Logger
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	dr, err := parseRange(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, err
	}
	res, err := h.Engine.Availability(ctx, property.ID(q.PropertyID), dr)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.MapAvailability(q.PropertyID, dr, res), nil
}

type QuoteStayHandler struct {
	Engine *lifecycle.Engine
}

func (h *QuoteStayHandler) Handle(ctx context.Context, q QuoteStayQuery) (dto.PriceBreakdown, error) {
	dr, err := parseRange(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.PriceBreakdown{}, err
	}
	price, err := h.Engine.Quote(ctx, property.ID(q.PropertyID), dr)
	if err != nil {
		return dto.PriceBreakdown{}, err
	}
	return dto.MapPrice(price), nil
}

func parseRange(checkIn, checkOut string) (daterange.DateRange, error) {
	dr, err := daterange.Parse(checkIn, checkOut)
	if err != nil {
		return daterange.DateRange{}, fmt.Errorf("%w: %v", domainbooking.ErrInvalidInput, err)
	}
	return dr, nil
}

var (
	_ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
	_ queries.Handler[QuoteStayQuery, dto.PriceBreakdown]       = (*QuoteStayHandler)(nil)
)
