package property

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var ErrNotFound = errors.New("property: not found")

type ID string

// Property is the read-only snapshot of a listing that booking needs. The
// catalogue itself is owned elsewhere.
type Property struct {
	ID              ID
	HostID          string
	Title           string
	MaxGuests       int
	NightlyPrice    money.Money
	CleaningFee     money.Money
	SecurityDeposit money.Money
}

// Override is a per-date host adjustment. A blocked date is unavailable
// regardless of bookings.
type Override struct {
	PropertyID    ID
	Date          time.Time
	Blocked       bool
	PriceOverride *money.Money
}

// Reader loads property snapshots.
type Reader interface {
	Property(ctx context.Context, id ID) (*Property, error)
}

// OverrideReader returns overrides that fall on nights of the range.
type OverrideReader interface {
	Overrides(ctx context.Context, id ID, r daterange.DateRange) ([]Override, error)
}
