package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/commission"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

// Engine is the only writer of booking status. Each operation reads the
// booking, applies one aggregate transition and persists it with a
// compare-and-swap on the status it read, together with the resulting
// outbox records, in a single unit of work.
type Engine struct {
	uow        uow.UoWFactory
	properties property.Reader
	cfg        Config
	now        func() time.Time
	newID      func() string
	encoder    outbox.EventEncoder
	logger     *slog.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

func WithEncoder(enc outbox.EventEncoder) Option {
	return func(e *Engine) { e.encoder = enc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(factory uow.UoWFactory, properties property.Reader, cfg Config, opts ...Option) (*Engine, error) {
	if factory == nil {
		return nil, errors.New("lifecycle: uow factory required")
	}
	if properties == nil {
		return nil, errors.New("lifecycle: property reader required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		uow:        factory,
		properties: properties,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
		encoder:    outbox.JSONEventEncoder{Source: "staybook"},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Now is the engine's clock in UTC.
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

func (e *Engine) Config() Config {
	return e.cfg
}

type CreateRequest struct {
	PropertyID property.ID
	GuestID    string
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
}

// Create validates the request against the property, re-checks availability
// inside the transaction, prices the stay and inserts a pending booking.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*booking.Booking, error) {
	dr, err := daterange.New(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrInvalidInput, err)
	}
	if err := e.checkStay(dr); err != nil {
		return nil, err
	}
	now := e.Now()
	if dr.CheckIn.Before(daterange.Day(now)) {
		return nil, fmt.Errorf("%w: check-in is in the past", booking.ErrInvalidInput)
	}
	if req.Guests < 1 {
		return nil, fmt.Errorf("%w: guests count must be positive", booking.ErrInvalidInput)
	}
	prop, err := e.properties.Property(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if req.Guests > prop.MaxGuests {
		return nil, booking.ErrCapacityExceeded
	}
	price, err := e.price(prop, dr)
	if err != nil {
		return nil, err
	}

	var created *booking.Booking
	err = uow.Run(ctx, e.uow, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		ok, err := availability.NewChecker(unit.Bookings(), unit.Overrides()).IsAvailable(ctx, prop.ID, dr, "")
		if err != nil {
			return err
		}
		if !ok {
			return booking.ErrUnavailable
		}
		b, err := booking.New(booking.CreateParams{
			ID:        booking.ID(e.newID()),
			Property:  *prop,
			GuestID:   req.GuestID,
			Range:     dr,
			Guests:    req.Guests,
			Price:     price,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if err := unit.Bookings().Insert(ctx, b); err != nil {
			return err
		}
		if err := e.flushEvents(ctx, unit, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		e.logger.WarnContext(ctx, "booking create rejected",
			slog.String("property_id", string(req.PropertyID)),
			slog.String("range", dr.String()),
			slog.Any("error", err))
		return nil, err
	}
	e.logger.InfoContext(ctx, "booking created",
		slog.String("booking_id", string(created.ID)),
		slog.String("property_id", string(created.PropertyID)),
		slog.Int64("total", created.Price.Total.Amount))
	return created, nil
}

// Quote prices a stay without reserving it.
func (e *Engine) Quote(ctx context.Context, propertyID property.ID, dr daterange.DateRange) (pricing.Breakdown, error) {
	if err := e.checkStay(dr); err != nil {
		return pricing.Breakdown{}, err
	}
	prop, err := e.properties.Property(ctx, propertyID)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return e.price(prop, dr)
}

// Availability answers the availability question outside of any write.
func (e *Engine) Availability(ctx context.Context, propertyID property.ID, dr daterange.DateRange) (availability.Result, error) {
	if err := e.checkStay(dr); err != nil {
		return availability.Result{}, err
	}
	var res availability.Result
	err := uow.Run(ctx, e.uow, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		res, err = availability.NewChecker(unit.Bookings(), unit.Overrides()).Check(ctx, propertyID, dr, "")
		return err
	})
	return res, err
}

func (e *Engine) checkStay(dr daterange.DateRange) error {
	if err := dr.Validate(); err != nil {
		return fmt.Errorf("%w: %v", booking.ErrInvalidInput, err)
	}
	if n := dr.Nights(); n > e.cfg.MaxNights {
		return fmt.Errorf("%w: stay of %d nights exceeds the %d night limit", booking.ErrInvalidInput, n, e.cfg.MaxNights)
	}
	return nil
}

func (e *Engine) price(prop *property.Property, dr daterange.DateRange) (pricing.Breakdown, error) {
	price, err := pricing.Calculate(pricing.Input{
		PricePerNight:   prop.NightlyPrice,
		Nights:          dr.Nights(),
		CleaningFee:     prop.CleaningFee,
		SecurityDeposit: prop.SecurityDeposit,
	}, e.cfg.Pricing)
	if err != nil {
		return pricing.Breakdown{}, fmt.Errorf("%w: %v", booking.ErrInvalidInput, err)
	}
	return price, nil
}

// Approve freezes commission and host payout at the configured rate and
// opens the payment window.
func (e *Engine) Approve(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	return e.transition(ctx, id, "approve", func(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error {
		split, err := commission.Calculate(b.Price.Total, e.cfg.CommissionRate, e.cfg.Pricing.Quantum)
		if err != nil {
			return err
		}
		return b.Approve(split, now.Add(e.cfg.PaymentWindow), now)
	})
}

type PaymentSubmission struct {
	Method    string
	Reference string
	ProofRef  string
}

// MarkPaid records the guest's payment claim; the proof reference is stored
// verbatim. A retry after a rejected payment takes the dates back, so they
// are re-checked first.
func (e *Engine) MarkPaid(ctx context.Context, id booking.ID, p PaymentSubmission) (*booking.Booking, error) {
	return e.transition(ctx, id, "mark_paid", func(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error {
		if !b.Status.IsBlocking() && booking.IsValidTransition(b.Status, booking.StatusAwaitingPayment) {
			ok, err := availability.NewChecker(unit.Bookings(), unit.Overrides()).IsAvailable(ctx, b.PropertyID, b.Range, b.ID)
			if err != nil {
				return err
			}
			if !ok {
				return booking.ErrUnavailable
			}
		}
		return b.SubmitPayment(p.Method, p.Reference, p.ProofRef, now)
	})
}

func (e *Engine) ConfirmPayment(ctx context.Context, id booking.ID, confirmedBy, notes string) (*booking.Booking, error) {
	return e.transition(ctx, id, "confirm_payment", func(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error {
		return b.ConfirmPayment(confirmedBy, notes, now)
	})
}

func (e *Engine) RejectPayment(ctx context.Context, id booking.ID, reason string) (*booking.Booking, error) {
	return e.transition(ctx, id, "reject_payment", func(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error {
		return b.RejectPayment(strings.TrimSpace(reason), now)
	})
}

func (e *Engine) Cancel(ctx context.Context, id booking.ID, reason string) (*booking.Booking, error) {
	return e.transition(ctx, id, "cancel", func(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error {
		return b.Cancel(strings.TrimSpace(reason), now)
	})
}

func (e *Engine) Complete(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	return e.transition(ctx, id, "complete", func(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error {
		return b.Complete(now)
	})
}

// Expire is meant for the sweeper only.
func (e *Engine) Expire(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	return e.transition(ctx, id, "expire", func(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error {
		return b.Expire(now)
	})
}

func (e *Engine) Get(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	var out *booking.Booking
	err := uow.Run(ctx, e.uow, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		out, err = unit.Bookings().ByID(ctx, id)
		return err
	})
	return out, err
}

func (e *Engine) ListByGuest(ctx context.Context, guestID string, filter booking.ListFilter) ([]*booking.Booking, error) {
	var out []*booking.Booking
	err := uow.Run(ctx, e.uow, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		out, err = unit.Bookings().ListByGuest(ctx, guestID, filter)
		return err
	})
	return out, err
}

func (e *Engine) ListByProperty(ctx context.Context, propertyID property.ID, filter booking.ListFilter) ([]*booking.Booking, error) {
	var out []*booking.Booking
	err := uow.Run(ctx, e.uow, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		out, err = unit.Bookings().ListByProperty(ctx, propertyID, filter)
		return err
	})
	return out, err
}

// ExpiredAwaitingPayment pages bookings whose payment deadline is behind the
// engine clock, starting after the given cursor.
func (e *Engine) ExpiredAwaitingPayment(ctx context.Context, after booking.DeadlineCursor, limit int) ([]booking.DeadlineCursor, error) {
	var page []booking.DeadlineCursor
	now := e.Now()
	err := uow.Run(ctx, e.uow, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		page, err = unit.Bookings().ExpiredAwaitingPayment(ctx, now, after, limit)
		return err
	})
	return page, err
}

func (e *Engine) transition(ctx context.Context, id booking.ID, op string, apply func(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) error) (*booking.Booking, error) {
	var (
		out  *booking.Booking
		from booking.Status
	)
	err := uow.Run(ctx, e.uow, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, id)
		if err != nil {
			return err
		}
		from = b.Status
		if err := apply(ctx, unit, b, e.Now()); err != nil {
			return err
		}
		if err := unit.Bookings().Update(ctx, b, from); err != nil {
			if errors.Is(err, booking.ErrConcurrentModification) {
				return e.lostRace(ctx, unit, id, from)
			}
			return err
		}
		if err := e.flushEvents(ctx, unit, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		e.logTransitionFailure(ctx, id, op, err)
		return nil, err
	}
	e.logger.InfoContext(ctx, "booking transitioned",
		slog.String("booking_id", string(id)),
		slog.String("op", op),
		slog.String("from", string(from)),
		slog.String("to", string(out.Status)))
	return out, nil
}

// lostRace re-reads the row after a zero-row CAS so the caller learns the
// status that won.
func (e *Engine) lostRace(ctx context.Context, unit uow.UnitOfWork, id booking.ID, expected booking.Status) error {
	current, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return err
	}
	return &booking.ConcurrentModificationError{Expected: expected, Current: current.Status}
}

func (e *Engine) flushEvents(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking) error {
	evs := b.PendingEvents()
	b.ClearEvents()
	return outbox.RecordDomainEvents(ctx, unit.Outbox(), e.encoder, evs)
}

func (e *Engine) logTransitionFailure(ctx context.Context, id booking.ID, op string, err error) {
	level := slog.LevelWarn
	if !isExpected(err) {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("booking_id", string(id)),
		slog.String("op", op),
		slog.Any("error", err),
	}
	if current, ok := booking.CurrentStatus(err); ok {
		attrs = append(attrs, slog.String("current_status", string(current)))
	}
	e.logger.LogAttrs(ctx, level, "booking transition failed", attrs...)
}

func isExpected(err error) bool {
	for _, target := range []error{
		booking.ErrNotFound,
		booking.ErrInvalidInput,
		booking.ErrInvalidTransition,
		booking.ErrConcurrentModification,
		booking.ErrUnavailable,
		booking.ErrDeadlineNotReached,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
