package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("booking: not found")
	ErrInvalidInput           = errors.New("booking: invalid input")
	ErrInvalidTransition      = errors.New("booking: invalid status transition")
	ErrUnavailable            = errors.New("booking: dates are unavailable")
	ErrCapacityExceeded       = errors.New("booking: guest count exceeds property capacity")
	ErrConcurrentModification = errors.New("booking: modified concurrently")
	ErrDeadlineNotReached     = errors.New("booking: payment deadline has not passed")
	ErrCommissionFrozen       = errors.New("booking: commission already stamped")
)

// InvalidTransitionError names the status the booking is actually in and
// where it may go from there.
type InvalidTransitionError struct {
	Current Status
	Target  Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("booking: cannot move from %s to %s (allowed: [%s])", e.Current, e.Target, strings.Join(allowed, ", "))
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConcurrentModificationError reports a lost compare-and-swap on status.
type ConcurrentModificationError struct {
	Expected Status
	Current  Status
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("booking: expected status %s but found %s", e.Expected, e.Current)
}

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// CurrentStatus extracts the actual booking status carried by a transition
// or concurrency failure.
func CurrentStatus(err error) (Status, bool) {
	var it *InvalidTransitionError
	if errors.As(err, &it) {
		return it.Current, true
	}
	var cm *ConcurrentModificationError
	if errors.As(err, &cm) {
		return cm.Current, true
	}
	return "", false
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
