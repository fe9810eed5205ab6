package handlers

import (
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/admin"
	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/lifecycle"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
)

// Deps are the collaborators shared by the booking handlers.
type Deps struct {
	Engine       *lifecycle.Engine
	Sweeper      admin.PaymentSweeper
	ProofStorage policies.ProofStorage
	Logger       *slog.Logger
}

// RegisterCommands binds every lifecycle command to bus.
func RegisterCommands(bus *commands.InMemoryBus, d Deps) {
	commands.Register(bus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{Engine: d.Engine, Logger: d.Logger})

	t := &bookingapp.TransitionHandler{Engine: d.Engine}
	commands.Register(bus, bookingapp.ApproveBookingCommand{}.Key(), commands.HandlerFunc[bookingapp.ApproveBookingCommand, *dto.Booking](t.Approve))
	commands.Register(bus, bookingapp.MarkPaidCommand{}.Key(), commands.HandlerFunc[bookingapp.MarkPaidCommand, *dto.Booking](t.MarkPaid))
	commands.Register(bus, bookingapp.ConfirmPaymentCommand{}.Key(), commands.HandlerFunc[bookingapp.ConfirmPaymentCommand, *dto.Booking](t.ConfirmPayment))
	commands.Register(bus, bookingapp.RejectPaymentCommand{}.Key(), commands.HandlerFunc[bookingapp.RejectPaymentCommand, *dto.Booking](t.RejectPayment))
	commands.Register(bus, bookingapp.CancelBookingCommand{}.Key(), commands.HandlerFunc[bookingapp.CancelBookingCommand, *dto.Booking](t.Cancel))
	commands.Register(bus, bookingapp.CompleteBookingCommand{}.Key(), commands.HandlerFunc[bookingapp.CompleteBookingCommand, *dto.Booking](t.Complete))

	commands.Register(bus, bookingapp.UploadPaymentProofCommand{}.Key(), &bookingapp.UploadPaymentProofHandler{
		Bookings: d.Engine,
		Storage:  d.ProofStorage,
		Logger:   d.Logger,
	})
	commands.Register(bus, admin.RunPaymentSweepCommand{}.Key(), &admin.RunPaymentSweepHandler{Sweeper: d.Sweeper, Logger: d.Logger})
}

// RegisterQueries binds every booking read to bus.
func RegisterQueries(bus *queries.InMemoryBus, d Deps) {
	r := &bookingapp.ReadHandler{Engine: d.Engine}
	queries.Register(bus, bookingapp.GetBookingQuery{}.Key(), queries.HandlerFunc[bookingapp.GetBookingQuery, *dto.Booking](r.Get))
	queries.Register(bus, bookingapp.ListGuestBookingsQuery{}.Key(), queries.HandlerFunc[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](r.ListForGuest))
	queries.Register(bus, bookingapp.ListPropertyBookingsQuery{}.Key(), queries.HandlerFunc[bookingapp.ListPropertyBookingsQuery, dto.BookingCollection](r.ListForProperty))

	queries.Register(bus, availabilityapp.CheckAvailabilityQuery{}.Key(), &availabilityapp.CheckAvailabilityHandler{Engine: d.Engine, Logger: d.Logger})
	queries.Register(bus, availabilityapp.QuoteStayQuery{}.Key(), &availabilityapp.QuoteStayHandler{Engine: d.Engine})
}
