package dto

import (
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type PriceBreakdown struct {
	Nights          int      `json:"nights"`
	PricePerNight   MoneyDTO `json:"price_per_night"`
	BasePrice       MoneyDTO `json:"base_price"`
	CleaningFee     MoneyDTO `json:"cleaning_fee"`
	ServiceFee      MoneyDTO `json:"service_fee"`
	Taxes           MoneyDTO `json:"taxes"`
	SecurityDeposit MoneyDTO `json:"security_deposit"`
	Total           MoneyDTO `json:"total"`
}

type Commission struct {
	RateBps    int64    `json:"rate_bps"`
	Commission MoneyDTO `json:"platform_commission"`
	HostPayout MoneyDTO `json:"host_payout"`
}

type Payment struct {
	Method      string     `json:"method,omitempty"`
	Reference   string     `json:"reference,omitempty"`
	ProofRef    string     `json:"proof_ref,omitempty"`
	ConfirmedBy string     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type Booking struct {
	ID                 string         `json:"id"`
	PropertyID         string         `json:"property_id"`
	GuestID            string         `json:"guest_id"`
	CheckIn            string         `json:"check_in"`
	CheckOut           string         `json:"check_out"`
	Guests             int            `json:"guests"`
	Status             string         `json:"status"`
	AllowedNext        []string       `json:"allowed_next"`
	Price              PriceBreakdown `json:"price"`
	Commission         *Commission    `json:"commission,omitempty"`
	Payment            Payment        `json:"payment"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

type Availability struct {
	PropertyID   string   `json:"property_id"`
	CheckIn      string   `json:"check_in"`
	CheckOut     string   `json:"check_out"`
	Available    bool     `json:"available"`
	Reason       string   `json:"reason,omitempty"`
	BlockedDates []string `json:"blocked_dates,omitempty"`
}

type SweepResult struct {
	Expired int      `json:"expired"`
	Errors  []string `json:"errors,omitempty"`
}

type ProofUpload struct {
	ProofRef string `json:"proof_ref"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

func MapPrice(p pricing.Breakdown) PriceBreakdown {
	return PriceBreakdown{
		Nights:          p.Nights,
		PricePerNight:   MapMoney(p.PricePerNight),
		BasePrice:       MapMoney(p.BasePrice),
		CleaningFee:     MapMoney(p.CleaningFee),
		ServiceFee:      MapMoney(p.ServiceFee),
		Taxes:           MapMoney(p.Taxes),
		SecurityDeposit: MapMoney(p.SecurityDeposit),
		Total:           MapMoney(p.Total),
	}
}

func MapBooking(b *booking.Booking) Booking {
	allowed := booking.AllowedTargets(b.Status)
	next := make([]string, len(allowed))
	for i, s := range allowed {
		next[i] = string(s)
	}
	out := Booking{
		ID:          string(b.ID),
		PropertyID:  string(b.PropertyID),
		GuestID:     b.GuestID,
		CheckIn:     b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:    b.Range.CheckOut.Format(daterange.Layout),
		Guests:      b.Guests,
		Status:      string(b.Status),
		AllowedNext: next,
		Price:       MapPrice(b.Price),
		Payment: Payment{
			Method:      b.Payment.Method,
			Reference:   b.Payment.Reference,
			ProofRef:    b.Payment.ProofRef,
			ConfirmedBy: b.Payment.ConfirmedBy,
			ConfirmedAt: b.Payment.ConfirmedAt,
			Deadline:    b.Payment.Deadline,
			Notes:       b.Payment.Notes,
		},
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		CancelledAt:        b.CancelledAt,
	}
	if b.Commission != nil {
		out.Commission = &Commission{
			RateBps:    int64(b.Commission.Rate),
			Commission: MapMoney(b.Commission.Commission),
			HostPayout: MapMoney(b.Commission.HostPayout),
		}
	}
	return out
}

func MapBookings(items []*booking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}

func MapAvailability(propertyID string, dr daterange.DateRange, res availability.Result) Availability {
	return Availability{
		PropertyID:   propertyID,
		CheckIn:      dr.CheckIn.Format(daterange.Layout),
		CheckOut:     dr.CheckOut.Format(daterange.Layout),
		Available:    res.Available,
		Reason:       string(res.Reason),
		BlockedDates: res.BlockedDates,
	}
}
