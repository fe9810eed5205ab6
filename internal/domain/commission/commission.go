package commission

import (
	"staybook/internal/domain/shared/money"
)

// Split is the platform/host division of a booking total, frozen at approval.
type Split struct {
	Rate       money.BasisPoints
	Commission money.Money
	HostPayout money.Money
}

// Calculate splits total with the platform commission rounded half-up to
// quantum; the host receives the remainder so the parts always add up.
func Calculate(total money.Money, rate money.BasisPoints, quantum int64) (Split, error) {
	fee, err := total.PercentOf(rate, quantum)
	if err != nil {
		return Split{}, err
	}
	payout, err := total.Sub(fee)
	if err != nil {
		return Split{}, err
	}
	return Split{Rate: rate, Commission: fee, HostPayout: payout}, nil
}
