package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

// PropertyRepository reads the property snapshot and per-date overrides. The
// catalogue service owns these tables; booking never writes them.
type PropertyRepository struct {
	db DBTX
}

func NewPropertyRepository(db DBTX) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) Property(ctx context.Context, id property.ID) (*property.Property, error) {
	var (
		p        property.Property
		rawID    string
		currency string
		nightly  int64
		cleaning int64
		deposit  int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, host_id, title, max_guests, currency,
			nightly_price, cleaning_fee, security_deposit
		FROM properties WHERE id = $1`, string(id)).
		Scan(&rawID, &p.HostID, &p.Title, &p.MaxGuests, &currency, &nightly, &cleaning, &deposit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, property.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load property %s: %w", id, err)
	}
	p.ID = property.ID(rawID)
	p.NightlyPrice = money.Money{Amount: nightly, Currency: currency}
	p.CleaningFee = money.Money{Amount: cleaning, Currency: currency}
	p.SecurityDeposit = money.Money{Amount: deposit, Currency: currency}
	return &p, nil
}

func (r *PropertyRepository) Overrides(ctx context.Context, id property.ID, dr daterange.DateRange) ([]property.Override, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT o.date, o.is_blocked, o.price_override, p.currency
		FROM availability_overrides o
		JOIN properties p ON p.id = o.property_id
		WHERE o.property_id = $1 AND o.date >= $2 AND o.date < $3
		ORDER BY o.date`, string(id), dr.CheckIn, dr.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("postgres: load overrides: %w", err)
	}
	defer rows.Close()
	var out []property.Override
	for rows.Next() {
		var (
			day      time.Time
			blocked  bool
			price    sql.NullInt64
			currency string
		)
		if err := rows.Scan(&day, &blocked, &price, &currency); err != nil {
			return nil, err
		}
		o := property.Override{PropertyID: id, Date: daterange.Day(day), Blocked: blocked}
		if price.Valid {
			o.PriceOverride = &money.Money{Amount: price.Int64, Currency: currency}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

var (
	_ property.Reader         = (*PropertyRepository)(nil)
	_ property.OverrideReader = (*PropertyRepository)(nil)
)
