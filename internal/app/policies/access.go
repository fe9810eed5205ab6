package policies

// Guarded messages name the action the caller needs permission for.
type Guarded interface {
	Action() string
}

// BookingScoped messages act on one booking; the caller must own it or host
// its property.
type BookingScoped interface {
	BookingRef() string
}

// PropertyScoped messages act on one property; the caller must host it.
type PropertyScoped interface {
	PropertyRef() string
}

// GuestScoped messages act on behalf of one guest; the caller must be that
// guest.
type GuestScoped interface {
	GuestRef() string
}

const (
	ActionBookingCreate   = "booking.create"
	ActionBookingRead     = "booking.read"
	ActionBookingListMine = "booking.list_mine"
	ActionBookingApprove  = "booking.approve"
	ActionBookingMarkPaid = "booking.mark_paid"
	ActionUploadProof     = "booking.upload_proof"
	ActionConfirmPayment  = "booking.confirm_payment"
	ActionRejectPayment   = "booking.reject_payment"
	ActionBookingCancel   = "booking.cancel"
	ActionBookingComplete = "booking.complete"
	ActionPropertyList    = "property.bookings"
	ActionAvailability    = "property.availability"
	ActionQuote           = "property.quote"
	ActionSweepPayments   = "sweep.payments"
)
