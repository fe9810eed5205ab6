package booking

import (
	"strings"
	"time"

	"staybook/internal/domain/commission"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

type ID string

// Payment is filled in progressively as the booking moves through the
// payment part of its lifecycle.
type Payment struct {
	Method      string
	Reference   string
	ProofRef    string
	ConfirmedBy string
	ConfirmedAt *time.Time
	Deadline    *time.Time
	Notes       string
}

type Booking struct {
	ID                 ID
	PropertyID         property.ID
	GuestID            string
	Range              daterange.DateRange
	Guests             int
	Price              pricing.Breakdown
	Commission         *commission.Split
	Status             Status
	Payment            Payment
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        *time.Time
	events.EventRecorder
}

type CreateParams struct {
	ID        ID
	Property  property.Property
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	Price     pricing.Breakdown
	CreatedAt time.Time
}

// New validates a reservation request against the property snapshot and
// returns a pending booking. Capacity is checked here once and never again.
func New(p CreateParams) (*Booking, error) {
	if p.ID == "" {
		return nil, invalidInput("booking id required")
	}
	if strings.TrimSpace(p.GuestID) == "" {
		return nil, invalidInput("guest id required")
	}
	if err := p.Range.Validate(); err != nil {
		return nil, invalidInput(err.Error())
	}
	if p.Guests < 1 {
		return nil, invalidInput("guests count must be positive")
	}
	if p.Guests > p.Property.MaxGuests {
		return nil, ErrCapacityExceeded
	}
	if !p.Price.Consistent() {
		return nil, invalidInput("price breakdown does not add up")
	}
	now := p.CreatedAt.UTC()
	b := &Booking{
		ID:         p.ID,
		PropertyID: p.Property.ID,
		GuestID:    p.GuestID,
		Range:      p.Range,
		Guests:     p.Guests,
		Price:      p.Price,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.Record(BookingCreated{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		HostID:     p.Property.HostID,
		GuestID:    b.GuestID,
		CheckIn:    b.Range.CheckIn,
		CheckOut:   b.Range.CheckOut,
		Guests:     b.Guests,
		Total:      b.Price.Total,
		At:         now,
	})
	return b, nil
}

// Approve freezes the commission split and opens the payment window.
func (b *Booking) Approve(split commission.Split, deadline, now time.Time) error {
	if b.Status != StatusPending {
		return b.invalid(StatusAwaitingPayment)
	}
	if b.Commission != nil {
		return ErrCommissionFrozen
	}
	if split.Commission.Currency != b.Price.Total.Currency {
		return invalidInput("commission currency differs from booking total")
	}
	d := deadline.UTC()
	b.Commission = &split
	b.Payment.Deadline = &d
	b.Status = StatusAwaitingPayment
	b.touch(now)
	b.Record(BookingApproved{
		BookingID:       b.ID,
		PropertyID:      b.PropertyID,
		GuestID:         b.GuestID,
		Commission:      split.Commission,
		HostPayout:      split.HostPayout,
		PaymentDeadline: d,
		At:              b.UpdatedAt,
	})
	return nil
}

// SubmitPayment records the guest's offline payment. A retry after a
// rejected payment passes through awaiting_payment on its way to
// awaiting_confirmation.
func (b *Booking) SubmitPayment(method, reference, proofRef string, now time.Time) error {
	from := b.Status
	path := []Status{StatusAwaitingConfirmation}
	if from == StatusPaymentFailed {
		path = []Status{StatusAwaitingPayment, StatusAwaitingConfirmation}
	}
	cur := from
	for _, next := range path {
		if !IsValidTransition(cur, next) {
			return b.invalid(StatusAwaitingConfirmation)
		}
		cur = next
	}
	method = strings.TrimSpace(method)
	reference = strings.TrimSpace(reference)
	if method == "" || reference == "" {
		return invalidInput("payment method and reference required")
	}
	b.Payment.Method = method
	b.Payment.Reference = reference
	b.Payment.ProofRef = proofRef
	b.Status = StatusAwaitingConfirmation
	b.touch(now)
	b.Record(PaymentSubmitted{
		BookingID: b.ID,
		GuestID:   b.GuestID,
		Method:    method,
		Reference: reference,
		ProofRef:  proofRef,
		Retry:     from == StatusPaymentFailed,
		At:        b.UpdatedAt,
	})
	return nil
}

func (b *Booking) ConfirmPayment(confirmedBy, notes string, now time.Time) error {
	if err := b.guard(StatusConfirmed); err != nil {
		return err
	}
	if strings.TrimSpace(confirmedBy) == "" {
		return invalidInput("confirming actor required")
	}
	at := now.UTC()
	b.Payment.ConfirmedBy = confirmedBy
	b.Payment.ConfirmedAt = &at
	if notes != "" {
		b.Payment.Notes = notes
	}
	b.Status = StatusConfirmed
	b.touch(now)
	b.Record(PaymentConfirmed{BookingID: b.ID, GuestID: b.GuestID, ConfirmedBy: confirmedBy, At: b.UpdatedAt})
	return nil
}

func (b *Booking) RejectPayment(reason string, now time.Time) error {
	if err := b.guard(StatusPaymentFailed); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return invalidInput("rejection reason required")
	}
	b.Payment.Notes = reason
	b.Status = StatusPaymentFailed
	b.touch(now)
	b.Record(PaymentRejected{BookingID: b.ID, GuestID: b.GuestID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// Cancel is allowed from every non-terminal status.
func (b *Booking) Cancel(reason string, now time.Time) error {
	if err := b.guard(StatusCancelled); err != nil {
		return err
	}
	previous := b.Status
	at := now.UTC()
	b.CancellationReason = reason
	b.CancelledAt = &at
	b.Status = StatusCancelled
	b.touch(now)
	b.Record(BookingCancelled{
		BookingID:      b.ID,
		PropertyID:     b.PropertyID,
		GuestID:        b.GuestID,
		PreviousStatus: previous,
		Reason:         reason,
		At:             b.UpdatedAt,
	})
	return nil
}

func (b *Booking) Complete(now time.Time) error {
	if err := b.guard(StatusCompleted); err != nil {
		return err
	}
	b.Status = StatusCompleted
	b.touch(now)
	b.Record(BookingCompleted{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, At: b.UpdatedAt})
	return nil
}

// Expire closes an unpaid booking once its deadline is strictly in the past.
func (b *Booking) Expire(now time.Time) error {
	if err := b.guard(StatusExpired); err != nil {
		return err
	}
	if b.Payment.Deadline == nil || !b.Payment.Deadline.Before(now) {
		return ErrDeadlineNotReached
	}
	at := now.UTC()
	b.CancelledAt = &at
	b.Status = StatusExpired
	b.touch(now)
	b.Record(BookingExpired{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		Deadline:   *b.Payment.Deadline,
		At:         b.UpdatedAt,
	})
	return nil
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	out := *b
	out.EventRecorder = events.EventRecorder{}
	if b.Commission != nil {
		split := *b.Commission
		out.Commission = &split
	}
	out.Payment.ConfirmedAt = cloneTime(b.Payment.ConfirmedAt)
	out.Payment.Deadline = cloneTime(b.Payment.Deadline)
	out.CancelledAt = cloneTime(b.CancelledAt)
	return &out
}

func (b *Booking) guard(target Status) error {
	if !IsValidTransition(b.Status, target) {
		return b.invalid(target)
	}
	return nil
}

func (b *Booking) invalid(target Status) error {
	return &InvalidTransitionError{Current: b.Status, Target: target, Allowed: AllowedTargets(b.Status)}
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now.UTC()
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
