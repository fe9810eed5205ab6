package booking

import (
	"context"

	"staybook/internal/app/dto"
	"staybook/internal/app/lifecycle"
	"staybook/internal/app/policies"
	domainbooking "staybook/internal/domain/booking"
)

const (
	approveBookingKey  = "booking.approve"
	markPaidKey        = "booking.mark_paid"
	confirmPaymentKey  = "booking.confirm_payment"
	rejectPaymentKey   = "booking.reject_payment"
	cancelBookingKey   = "booking.cancel"
	completeBookingKey = "booking.complete"
)

type ApproveBookingCommand struct {
	BookingID string `validate:"required"`
}

func (c ApproveBookingCommand) Key() string        { return approveBookingKey }
func (c ApproveBookingCommand) Action() string     { return policies.ActionBookingApprove }
func (c ApproveBookingCommand) BookingRef() string { return c.BookingID }

type MarkPaidCommand struct {
	BookingID string `validate:"required"`
	Method    string `validate:"required,max=64"`
	Reference string `validate:"required,max=256"`
	ProofRef  string `validate:"omitempty,max=2048"`
}

func (c MarkPaidCommand) Key() string        { return markPaidKey }
func (c MarkPaidCommand) Action() string     { return policies.ActionBookingMarkPaid }
func (c MarkPaidCommand) BookingRef() string { return c.BookingID }

type ConfirmPaymentCommand struct {
	BookingID   string `validate:"required"`
	ConfirmedBy string `validate:"required"`
	Notes       string `validate:"max=2000"`
}

func (c ConfirmPaymentCommand) Key() string        { return confirmPaymentKey }
func (c ConfirmPaymentCommand) Action() string     { return policies.ActionConfirmPayment }
func (c ConfirmPaymentCommand) BookingRef() string { return c.BookingID }

type RejectPaymentCommand struct {
	BookingID string `validate:"required"`
	Reason    string `validate:"required,max=2000"`
}

func (c RejectPaymentCommand) Key() string        { return rejectPaymentKey }
func (c RejectPaymentCommand) Action() string     { return policies.ActionRejectPayment }
func (c RejectPaymentCommand) BookingRef() string { return c.BookingID }

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	Reason    string `validate:"max=2000"`
}

func (c CancelBookingCommand) Key() string        { return cancelBookingKey }
func (c CancelBookingCommand) Action() string     { return policies.ActionBookingCancel }
func (c CancelBookingCommand) BookingRef() string { return c.BookingID }

type CompleteBookingCommand struct {
	BookingID string `validate:"required"`
}

func (c CompleteBookingCommand) Key() string        { return completeBookingKey }
func (c CompleteBookingCommand) Action() string     { return policies.ActionBookingComplete }
func (c CompleteBookingCommand) BookingRef() string { return c.BookingID }

// TransitionHandler serves every single-step lifecycle command.
type TransitionHandler struct {
	Engine *lifecycle.Engine
}

func (h *TransitionHandler) Approve(ctx context.Context, cmd ApproveBookingCommand) (*dto.Booking, error) {
	return mapped(h.Engine.Approve(ctx, domainbooking.ID(cmd.BookingID)))
}

func (h *TransitionHandler) MarkPaid(ctx context.Context, cmd MarkPaidCommand) (*dto.Booking, error) {
	return mapped(h.Engine.MarkPaid(ctx, domainbooking.ID(cmd.BookingID), lifecycle.PaymentSubmission{
		Method:    cmd.Method,
		Reference: cmd.Reference,
		ProofRef:  cmd.ProofRef,
	}))
}

func (h *TransitionHandler) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (*dto.Booking, error) {
	return mapped(h.Engine.ConfirmPayment(ctx, domainbooking.ID(cmd.BookingID), cmd.ConfirmedBy, cmd.Notes))
}

func (h *TransitionHandler) RejectPayment(ctx context.Context, cmd RejectPaymentCommand) (*dto.Booking, error) {
	return mapped(h.Engine.RejectPayment(ctx, domainbooking.ID(cmd.BookingID), cmd.Reason))
}

func (h *TransitionHandler) Cancel(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	return mapped(h.Engine.Cancel(ctx, domainbooking.ID(cmd.BookingID), cmd.Reason))
}

func (h *TransitionHandler) Complete(ctx context.Context, cmd CompleteBookingCommand) (*dto.Booking, error) {
	return mapped(h.Engine.Complete(ctx, domainbooking.ID(cmd.BookingID)))
}

func mapped(b *domainbooking.Booking, err error) (*dto.Booking, error) {
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}
