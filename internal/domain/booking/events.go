package booking

import (
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

const (
	EventCreated          = "booking.created"
	EventApproved         = "booking.approved"
	EventPaymentSubmitted = "booking.payment_submitted"
	EventPaymentConfirmed = "booking.payment_confirmed"
	EventPaymentRejected  = "booking.payment_rejected"
	EventCancelled        = "booking.cancelled"
	EventExpired          = "booking.expired"
	EventCompleted        = "booking.completed"
)

type BookingCreated struct {
	BookingID  ID          `json:"booking_id"`
	PropertyID property.ID `json:"property_id"`
	HostID     string      `json:"host_id"`
	GuestID    string      `json:"guest_id"`
	CheckIn    time.Time   `json:"check_in"`
	CheckOut   time.Time   `json:"check_out"`
	Guests     int         `json:"guests"`
	Total      money.Money `json:"total"`
	At         time.Time   `json:"occurred_at"`
}

func (e BookingCreated) EventName() string     { return EventCreated }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingApproved struct {
	BookingID       ID          `json:"booking_id"`
	PropertyID      property.ID `json:"property_id"`
	GuestID         string      `json:"guest_id"`
	Commission      money.Money `json:"commission"`
	HostPayout      money.Money `json:"host_payout"`
	PaymentDeadline time.Time   `json:"payment_deadline"`
	At              time.Time   `json:"occurred_at"`
}

func (e BookingApproved) EventName() string     { return EventApproved }
func (e BookingApproved) AggregateID() string   { return string(e.BookingID) }
func (e BookingApproved) OccurredAt() time.Time { return e.At }

type PaymentSubmitted struct {
	BookingID ID        `json:"booking_id"`
	GuestID   string    `json:"guest_id"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	ProofRef  string    `json:"proof_ref,omitempty"`
	Retry     bool      `json:"retry"`
	At        time.Time `json:"occurred_at"`
}

func (e PaymentSubmitted) EventName() string     { return EventPaymentSubmitted }
func (e PaymentSubmitted) AggregateID() string   { return string(e.BookingID) }
func (e PaymentSubmitted) OccurredAt() time.Time { return e.At }

type PaymentConfirmed struct {
	BookingID   ID        `json:"booking_id"`
	GuestID     string    `json:"guest_id"`
	ConfirmedBy string    `json:"confirmed_by"`
	At          time.Time `json:"occurred_at"`
}

func (e PaymentConfirmed) EventName() string     { return EventPaymentConfirmed }
func (e PaymentConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e PaymentConfirmed) OccurredAt() time.Time { return e.At }

type PaymentRejected struct {
	BookingID ID        `json:"booking_id"`
	GuestID   string    `json:"guest_id"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"occurred_at"`
}

func (e PaymentRejected) EventName() string     { return EventPaymentRejected }
func (e PaymentRejected) AggregateID() string   { return string(e.BookingID) }
func (e PaymentRejected) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID      ID          `json:"booking_id"`
	PropertyID     property.ID `json:"property_id"`
	GuestID        string      `json:"guest_id"`
	PreviousStatus Status      `json:"previous_status"`
	Reason         string      `json:"reason,omitempty"`
	At             time.Time   `json:"occurred_at"`
}

func (e BookingCancelled) EventName() string     { return EventCancelled }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingExpired struct {
	BookingID  ID          `json:"booking_id"`
	PropertyID property.ID `json:"property_id"`
	GuestID    string      `json:"guest_id"`
	Deadline   time.Time   `json:"payment_deadline"`
	At         time.Time   `json:"occurred_at"`
}

func (e BookingExpired) EventName() string     { return EventExpired }
func (e BookingExpired) AggregateID() string   { return string(e.BookingID) }
func (e BookingExpired) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID  ID          `json:"booking_id"`
	PropertyID property.ID `json:"property_id"`
	GuestID    string      `json:"guest_id"`
	At         time.Time   `json:"occurred_at"`
}

func (e BookingCompleted) EventName() string     { return EventCompleted }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }
