package booking

import (
	"context"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/lifecycle"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/domain/property"
)

const createBookingKey = "booking.create"

type CreateBookingCommand struct {
	GuestID    string    `validate:"required"`
	PropertyID string    `validate:"required"`
	CheckIn    time.Time `validate:"required"`
	CheckOut   time.Time `validate:"required"`
	Guests     int       `validate:"gte=1"`
	// ClientKey is the raw Idempotency-Key header.
	ClientKey string `validate:"omitempty,max=128"`
}

func (c CreateBookingCommand) Key() string      { return createBookingKey }
func (c CreateBookingCommand) Action() string   { return policies.ActionBookingCreate }
func (c CreateBookingCommand) GuestRef() string { return c.GuestID }

// IdempotencyKey is scoped to the guest so two guests can reuse a key.
func (c CreateBookingCommand) IdempotencyKey() string {
	if c.ClientKey == "" {
		return ""
	}
	return c.GuestID + ":" + c.ClientKey
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

type CreateBookingHandler struct {
	Engine *lifecycle.Engine
	Logger *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	b, err := h.Engine.Create(ctx, lifecycle.CreateRequest{
		PropertyID: property.ID(cmd.PropertyID),
		GuestID:    cmd.GuestID,
		CheckIn:    cmd.CheckIn,
		CheckOut:   cmd.CheckOut,
		Guests:     cmd.Guests,
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
