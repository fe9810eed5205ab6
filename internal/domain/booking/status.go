package booking

type Status string

const (
	StatusPending              Status = "pending"
	StatusAwaitingPayment      Status = "awaiting_payment"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusPaymentFailed        Status = "payment_failed"
	StatusConfirmed            Status = "confirmed"
	StatusCancelled            Status = "cancelled"
	StatusCompleted            Status = "completed"
	StatusExpired              Status = "expired"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusAwaitingPayment,
	StatusAwaitingConfirmation,
	StatusPaymentFailed,
	StatusConfirmed,
	StatusCancelled,
	StatusCompleted,
	StatusExpired,
}

// validTransitions is the only place the lifecycle graph is defined.
var validTransitions = map[Status][]Status{
	StatusPending:              {StatusAwaitingPayment, StatusCancelled},
	StatusAwaitingPayment:      {StatusAwaitingConfirmation, StatusExpired, StatusCancelled},
	StatusAwaitingConfirmation: {StatusConfirmed, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:        {StatusAwaitingPayment, StatusCancelled},
	StatusConfirmed:            {StatusCompleted, StatusCancelled},
	StatusExpired:              {StatusCancelled},
	StatusCancelled:            {},
	StatusCompleted:            {},
}

// blockingStatuses reserve the property's nights against other bookings.
var blockingStatuses = map[Status]bool{
	StatusPending:              true,
	StatusAwaitingPayment:      true,
	StatusAwaitingConfirmation: true,
	StatusConfirmed:            true,
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	_, ok := validTransitions[s]
	return s, ok
}

// IsValidTransition reports whether from -> to is an edge of the lifecycle graph.
func IsValidTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns a copy of the statuses reachable from s.
func AllowedTargets(s Status) []Status {
	targets := validTransitions[s]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

func (s Status) IsTerminal() bool {
	targets, ok := validTransitions[s]
	return ok && len(targets) == 0
}

func (s Status) IsBlocking() bool {
	return blockingStatuses[s]
}

// BlockingStatuses returns the statuses that hold dates, in lifecycle order.
func BlockingStatuses() []Status {
	out := make([]Status, 0, len(blockingStatuses))
	for _, s := range Statuses {
		if blockingStatuses[s] {
			out = append(out, s)
		}
	}
	return out
}

func (s Status) String() string {
	return string(s)
}
