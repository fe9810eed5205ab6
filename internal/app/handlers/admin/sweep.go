package admin

import (
	"context"
	"errors"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/policies"
)

const runPaymentSweepKey = "admin.sweeps.payments"

type RunPaymentSweepCommand struct {
	RequestedBy string
}

func (c RunPaymentSweepCommand) Key() string    { return runPaymentSweepKey }
func (c RunPaymentSweepCommand) Action() string { return policies.ActionSweepPayments }

type PaymentSweeper interface {
	SweepExpiredPayments(ctx context.Context) (int, error)
}

// RunPaymentSweepHandler runs one sweep on demand. Per-booking failures are
// reported in the result rather than failing the whole call.
type RunPaymentSweepHandler struct {
	Sweeper PaymentSweeper
	Logger  *slog.Logger
}

func (h *RunPaymentSweepHandler) Handle(ctx context.Context, cmd RunPaymentSweepCommand) (*dto.SweepResult, error) {
	if h.Sweeper == nil {
		return nil, errors.New("sweeper not configured")
	}
	n, err := h.Sweeper.SweepExpiredPayments(ctx)
	res := &dto.SweepResult{Expired: n}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		res.Errors = flatten(err)
		if h.Logger != nil {
			h.Logger.WarnContext(ctx, "payment sweep finished with errors", slog.String("requested_by", cmd.RequestedBy), slog.Int("errors", len(res.Errors)))
		}
	}
	return res, nil
}

func flatten(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

var _ commands.Handler[RunPaymentSweepCommand, *dto.SweepResult] = (*RunPaymentSweepHandler)(nil)
