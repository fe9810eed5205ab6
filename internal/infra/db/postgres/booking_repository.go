package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/commission"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

const (
	codeExclusionViolation = "23P01"
	constraintNoOverlap    = "bookings_no_overlap"
)

const bookingColumns = `id, property_id, guest_id, check_in, check_out, guests, currency,
	nights, price_per_night, base_price, cleaning_fee, service_fee, taxes, security_deposit, total,
	commission_rate_bps, platform_commission, host_payout, status,
	payment_method, payment_reference, payment_proof_url, payment_confirmed_by,
	payment_confirmed_at, payment_deadline, payment_notes,
	cancellation_reason, created_at, updated_at, cancelled_at`

// BookingRepository implements booking.Repository over database/sql.
type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Insert(ctx context.Context, b *booking.Booking) error {
	row := toRow(b)
	_, err := r.db.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`,
		row.id, row.propertyID, row.guestID, row.checkIn, row.checkOut, row.guests, row.currency,
		row.nights, row.pricePerNight, row.basePrice, row.cleaningFee, row.serviceFee, row.taxes, row.securityDeposit, row.total,
		row.commissionRate, row.commission, row.hostPayout, row.status,
		row.paymentMethod, row.paymentReference, row.paymentProof, row.confirmedBy,
		row.confirmedAt, row.deadline, row.notes,
		row.cancellationReason, row.createdAt, row.updatedAt, row.cancelledAt,
	)
	if err != nil {
		return mapWriteError("insert booking", err)
	}
	return nil
}

func (r *BookingRepository) ByID(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load booking %s: %w", id, err)
	}
	return b, nil
}

// Update writes every mutable column, guarded by the status the caller read.
func (r *BookingRepository) Update(ctx context.Context, b *booking.Booking, expected booking.Status) error {
	row := toRow(b)
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET
			status = $3,
			commission_rate_bps = $4, platform_commission = $5, host_payout = $6,
			payment_method = $7, payment_reference = $8, payment_proof_url = $9,
			payment_confirmed_by = $10, payment_confirmed_at = $11, payment_deadline = $12, payment_notes = $13,
			cancellation_reason = $14, updated_at = $15, cancelled_at = $16
		WHERE id = $1 AND status = $2`,
		row.id, string(expected),
		row.status,
		row.commissionRate, row.commission, row.hostPayout,
		row.paymentMethod, row.paymentReference, row.paymentProof,
		row.confirmedBy, row.confirmedAt, row.deadline, row.notes,
		row.cancellationReason, row.updatedAt, row.cancelledAt,
	)
	if err != nil {
		return mapWriteError("update booking", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update booking: %w", err)
	}
	if n == 0 {
		return booking.ErrConcurrentModification
	}
	return nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string, filter booking.ListFilter) ([]*booking.Booking, error) {
	return r.list(ctx, "guest_id", guestID, filter)
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID property.ID, filter booking.ListFilter) ([]*booking.Booking, error) {
	return r.list(ctx, "property_id", string(propertyID), filter)
}

func (r *BookingRepository) list(ctx context.Context, column, value string, filter booking.ListFilter) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + column + ` = $1`
	args := []any{value}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		query += fmt.Sprintf(` AND status = ANY($%d)`, len(args))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bookings: %w", err)
	}
	defer rows.Close()
	var out []*booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ExpiredAwaitingPayment pages overdue bookings by (payment_deadline, id)
// starting strictly after the cursor.
func (r *BookingRepository) ExpiredAwaitingPayment(ctx context.Context, now time.Time, after booking.DeadlineCursor, limit int) ([]booking.DeadlineCursor, error) {
	query := `SELECT id, payment_deadline FROM bookings
		WHERE status = $1 AND payment_deadline IS NOT NULL AND payment_deadline < $2`
	args := []any{string(booking.StatusAwaitingPayment), now.UTC()}
	if !after.IsZero() {
		query += ` AND (payment_deadline, id) > ($3, $4)`
		args = append(args, after.Deadline.UTC(), string(after.ID))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY payment_deadline, id LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: select expired bookings: %w", err)
	}
	defer rows.Close()
	var out []booking.DeadlineCursor
	for rows.Next() {
		var (
			id       string
			deadline time.Time
		)
		if err := rows.Scan(&id, &deadline); err != nil {
			return nil, err
		}
		out = append(out, booking.DeadlineCursor{Deadline: deadline.UTC(), ID: booking.ID(id)})
	}
	return out, rows.Err()
}

func (r *BookingRepository) BlockingOverlaps(ctx context.Context, propertyID property.ID, dr daterange.DateRange, exclude booking.ID) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE property_id = $1
			  AND status = ANY($2)
			  AND id <> $3
			  AND check_in < $5 AND $4 < check_out
		)`,
		string(propertyID), pq.Array(statusStrings(booking.BlockingStatuses())), string(exclude),
		dr.CheckIn, dr.CheckOut,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("postgres: overlap check: %w", err)
	}
	return found, nil
}

// mapWriteError turns the overlap exclusion constraint into the domain's
// unavailability error.
func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeExclusionViolation {
		if pqErr.Constraint == "" || pqErr.Constraint == constraintNoOverlap {
			return booking.ErrUnavailable
		}
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

type bookingRow struct {
	id, propertyID, guestID   string
	checkIn, checkOut         time.Time
	guests                    int
	currency                  string
	nights                    int
	pricePerNight, basePrice  int64
	cleaningFee, serviceFee   int64
	taxes, securityDeposit    int64
	total                     int64
	commissionRate            sql.NullInt64
	commission, hostPayout    sql.NullInt64
	status                    string
	paymentMethod             string
	paymentReference          string
	paymentProof, confirmedBy string
	confirmedAt, deadline     sql.NullTime
	notes, cancellationReason string
	createdAt, updatedAt      time.Time
	cancelledAt               sql.NullTime
}

func toRow(b *booking.Booking) bookingRow {
	row := bookingRow{
		id:                 string(b.ID),
		propertyID:         string(b.PropertyID),
		guestID:            b.GuestID,
		checkIn:            b.Range.CheckIn,
		checkOut:           b.Range.CheckOut,
		guests:             b.Guests,
		currency:           b.Price.Total.Currency,
		nights:             b.Price.Nights,
		pricePerNight:      b.Price.PricePerNight.Amount,
		basePrice:          b.Price.BasePrice.Amount,
		cleaningFee:        b.Price.CleaningFee.Amount,
		serviceFee:         b.Price.ServiceFee.Amount,
		taxes:              b.Price.Taxes.Amount,
		securityDeposit:    b.Price.SecurityDeposit.Amount,
		total:              b.Price.Total.Amount,
		status:             string(b.Status),
		paymentMethod:      b.Payment.Method,
		paymentReference:   b.Payment.Reference,
		paymentProof:       b.Payment.ProofRef,
		confirmedBy:        b.Payment.ConfirmedBy,
		confirmedAt:        nullTime(b.Payment.ConfirmedAt),
		deadline:           nullTime(b.Payment.Deadline),
		notes:              b.Payment.Notes,
		cancellationReason: b.CancellationReason,
		createdAt:          b.CreatedAt.UTC(),
		updatedAt:          b.UpdatedAt.UTC(),
		cancelledAt:        nullTime(b.CancelledAt),
	}
	if b.Commission != nil {
		row.commissionRate = sql.NullInt64{Int64: int64(b.Commission.Rate), Valid: true}
		row.commission = sql.NullInt64{Int64: b.Commission.Commission.Amount, Valid: true}
		row.hostPayout = sql.NullInt64{Int64: b.Commission.HostPayout.Amount, Valid: true}
	}
	return row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*booking.Booking, error) {
	var row bookingRow
	if err := s.Scan(
		&row.id, &row.propertyID, &row.guestID, &row.checkIn, &row.checkOut, &row.guests, &row.currency,
		&row.nights, &row.pricePerNight, &row.basePrice, &row.cleaningFee, &row.serviceFee, &row.taxes, &row.securityDeposit, &row.total,
		&row.commissionRate, &row.commission, &row.hostPayout, &row.status,
		&row.paymentMethod, &row.paymentReference, &row.paymentProof, &row.confirmedBy,
		&row.confirmedAt, &row.deadline, &row.notes,
		&row.cancellationReason, &row.createdAt, &row.updatedAt, &row.cancelledAt,
	); err != nil {
		return nil, err
	}
	status, ok := booking.ParseStatus(row.status)
	if !ok {
		return nil, fmt.Errorf("unknown booking status %q", row.status)
	}
	cur := row.currency
	b := &booking.Booking{
		ID:         booking.ID(row.id),
		PropertyID: property.ID(row.propertyID),
		GuestID:    row.guestID,
		Range:      daterange.DateRange{CheckIn: daterange.Day(row.checkIn), CheckOut: daterange.Day(row.checkOut)},
		Guests:     row.guests,
		Price: pricing.Breakdown{
			Nights:          row.nights,
			PricePerNight:   money.Money{Amount: row.pricePerNight, Currency: cur},
			BasePrice:       money.Money{Amount: row.basePrice, Currency: cur},
			CleaningFee:     money.Money{Amount: row.cleaningFee, Currency: cur},
			ServiceFee:      money.Money{Amount: row.serviceFee, Currency: cur},
			Taxes:           money.Money{Amount: row.taxes, Currency: cur},
			SecurityDeposit: money.Money{Amount: row.securityDeposit, Currency: cur},
			Total:           money.Money{Amount: row.total, Currency: cur},
		},
		Status: status,
		Payment: booking.Payment{
			Method:      row.paymentMethod,
			Reference:   row.paymentReference,
			ProofRef:    row.paymentProof,
			ConfirmedBy: row.confirmedBy,
			ConfirmedAt: timePtr(row.confirmedAt),
			Deadline:    timePtr(row.deadline),
			Notes:       row.notes,
		},
		CancellationReason: row.cancellationReason,
		CreatedAt:          row.createdAt.UTC(),
		UpdatedAt:          row.updatedAt.UTC(),
		CancelledAt:        timePtr(row.cancelledAt),
	}
	if row.commission.Valid {
		b.Commission = &commission.Split{
			Rate:       money.BasisPoints(row.commissionRate.Int64),
			Commission: money.Money{Amount: row.commission.Int64, Currency: cur},
			HostPayout: money.Money{Amount: row.hostPayout.Int64, Currency: cur},
		}
	}
	return b, nil
}

func statusStrings(in []booking.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

var _ booking.Repository = (*BookingRepository)(nil)
