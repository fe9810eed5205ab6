package pricing

import (
	"errors"

	"staybook/internal/domain/shared/money"
)

var (
	ErrNegativeComponent = errors.New("pricing: price components cannot be negative")
	ErrInvalidNights     = errors.New("pricing: nights must be positive")
)

// Rates are the platform fee and tax rates applied to every stay.
type Rates struct {
	ServiceFee money.BasisPoints
	Tax        money.BasisPoints
	// Quantum is the rounding step in minor units; 100 rounds to whole units.
	Quantum int64
}

func DefaultRates() Rates {
	return Rates{ServiceFee: 1200, Tax: 800, Quantum: 100}
}

type Input struct {
	PricePerNight   money.Money
	Nights          int
	CleaningFee     money.Money
	SecurityDeposit money.Money
}

// Breakdown is the full price of a stay. SecurityDeposit is carried for
// display and is never part of Total.
type Breakdown struct {
	Nights          int
	PricePerNight   money.Money
	BasePrice       money.Money
	CleaningFee     money.Money
	ServiceFee      money.Money
	Taxes           money.Money
	SecurityDeposit money.Money
	Total           money.Money
}

// Calculate prices a stay:
//
//	base     = pricePerNight * nights
//	service  = round(base * serviceFee)
//	subtotal = base + cleaning + service
//	taxes    = round(subtotal * tax)
//	total    = subtotal + taxes
func Calculate(in Input, rates Rates) (Breakdown, error) {
	if in.Nights <= 0 {
		return Breakdown{}, ErrInvalidNights
	}
	currency := in.PricePerNight.Currency
	cleaning := orZero(in.CleaningFee, currency)
	deposit := orZero(in.SecurityDeposit, currency)
	if in.PricePerNight.Amount < 0 || cleaning.Amount < 0 || deposit.Amount < 0 {
		return Breakdown{}, ErrNegativeComponent
	}

	base := in.PricePerNight.Multiply(int64(in.Nights))
	service, err := base.PercentOf(rates.ServiceFee, rates.Quantum)
	if err != nil {
		return Breakdown{}, err
	}
	subtotal, err := sum(base, cleaning, service)
	if err != nil {
		return Breakdown{}, err
	}
	taxes, err := subtotal.PercentOf(rates.Tax, rates.Quantum)
	if err != nil {
		return Breakdown{}, err
	}
	total, err := subtotal.Add(taxes)
	if err != nil {
		return Breakdown{}, err
	}
	if _, err := deposit.Add(total); err != nil {
		return Breakdown{}, err
	}
	return Breakdown{
		Nights:          in.Nights,
		PricePerNight:   in.PricePerNight,
		BasePrice:       base,
		CleaningFee:     cleaning,
		ServiceFee:      service,
		Taxes:           taxes,
		SecurityDeposit: deposit,
		Total:           total,
	}, nil
}

// Consistent reports whether total equals the sum of its components.
func (b Breakdown) Consistent() bool {
	s, err := sum(b.BasePrice, b.CleaningFee, b.ServiceFee, b.Taxes)
	return err == nil && s == b.Total
}

func sum(first money.Money, rest ...money.Money) (money.Money, error) {
	acc := first
	for _, m := range rest {
		next, err := acc.Add(m)
		if err != nil {
			return money.Money{}, err
		}
		acc = next
	}
	return acc, nil
}

func orZero(m money.Money, currency string) money.Money {
	if m.Currency == "" && m.Amount == 0 {
		return money.Zero(currency)
	}
	return m
}
