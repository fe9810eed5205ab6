package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"staybook/internal/domain/booking"
)

const DefaultBatchSize = 100

// Engine is the slice of the lifecycle engine the sweeper drives.
type Engine interface {
	ExpiredAwaitingPayment(ctx context.Context, after booking.DeadlineCursor, limit int) ([]booking.DeadlineCursor, error)
	Expire(ctx context.Context, id booking.ID) (*booking.Booking, error)
}

// Sweeper expires bookings whose payment window closed. It owns no timer;
// a scheduler calls SweepExpiredPayments.
type Sweeper struct {
	Engine    Engine
	BatchSize int
	Logger    *slog.Logger
}

func New(engine Engine, batchSize int, logger *slog.Logger) *Sweeper {
	return &Sweeper{Engine: engine, BatchSize: batchSize, Logger: logger}
}

// SweepExpiredPayments expires every overdue booking and returns how many it
// moved. Bookings that another actor moved first are skipped. Any other
// failure is joined into the returned error while the sweep carries on; the
// keyset cursor moves past failed bookings so later ones are still attempted.
func (s *Sweeper) SweepExpiredPayments(ctx context.Context) (int, error) {
	if s.Engine == nil {
		return 0, errors.New("sweeper: engine required")
	}
	limit := s.BatchSize
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	var (
		expired int
		errs    []error
		cursor  booking.DeadlineCursor
	)
	for {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		page, err := s.Engine.ExpiredAwaitingPayment(ctx, cursor, limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweeper: list candidates: %w", err))
			break
		}
		for _, c := range page {
			id := c.ID
			_, err := s.Engine.Expire(ctx, id)
			switch {
			case err == nil:
				expired++
			case skippable(err):
				s.logger().DebugContext(ctx, "sweeper skipped booking", slog.String("booking_id", string(id)), slog.Any("reason", err))
			default:
				errs = append(errs, fmt.Errorf("sweeper: expire %s: %w", id, err))
			}
		}
		if len(page) < limit {
			break
		}
		cursor = page[len(page)-1]
	}
	s.logger().InfoContext(ctx, "payment sweep finished", slog.Int("expired", expired), slog.Int("failed", len(errs)))
	return expired, errors.Join(errs...)
}

func skippable(err error) bool {
	return errors.Is(err, booking.ErrConcurrentModification) ||
		errors.Is(err, booking.ErrInvalidTransition) ||
		errors.Is(err, booking.ErrDeadlineNotReached) ||
		errors.Is(err, booking.ErrNotFound)
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
