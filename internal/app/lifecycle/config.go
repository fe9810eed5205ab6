package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/money"
)

const (
	DefaultCommissionRate money.BasisPoints = 1000
	DefaultPaymentWindow                    = 2 * time.Hour
	DefaultMaxNights                        = 365
)

var ErrInvalidConfig = errors.New("lifecycle: invalid config")

// Config holds the platform rates the engine applies. It is passed in at
// construction so that different engines can run with different rates.
type Config struct {
	CommissionRate money.BasisPoints
	Pricing        pricing.Rates
	PaymentWindow  time.Duration
	// MaxNights caps the length of a single stay.
	MaxNights int
}

func DefaultConfig() Config {
	return Config{
		CommissionRate: DefaultCommissionRate,
		Pricing:        pricing.DefaultRates(),
		PaymentWindow:  DefaultPaymentWindow,
		MaxNights:      DefaultMaxNights,
	}
}

func (c Config) Validate() error {
	switch {
	case c.CommissionRate < 0 || c.CommissionRate > 10_000:
		return fmt.Errorf("%w: commission rate %d bps out of range", ErrInvalidConfig, c.CommissionRate)
	case c.Pricing.ServiceFee < 0 || c.Pricing.Tax < 0:
		return fmt.Errorf("%w: negative fee rate", ErrInvalidConfig)
	case c.Pricing.Quantum <= 0:
		return fmt.Errorf("%w: rounding quantum must be positive", ErrInvalidConfig)
	case c.PaymentWindow <= 0:
		return fmt.Errorf("%w: payment window must be positive", ErrInvalidConfig)
	case c.MaxNights <= 0:
		return fmt.Errorf("%w: max nights must be positive", ErrInvalidConfig)
	}
	return nil
}
