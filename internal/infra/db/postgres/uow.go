package postgres

import (
	"context"
	"database/sql"
	"errors"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

// Factory wires database/sql transactions into the generic UnitOfWork.
type Factory struct {
	DB *sql.DB
}

// Begin opens a READ COMMITTED transaction. The status compare-and-swap and
// the exclusion constraint make stronger isolation unnecessary.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, err
	}
	return &Unit{tx: tx}, nil
}

type Unit struct {
	tx *sql.Tx
}

func (u *Unit) Bookings() booking.Repository       { return NewBookingRepository(u.tx) }
func (u *Unit) Overrides() property.OverrideReader { return NewPropertyRepository(u.tx) }
func (u *Unit) Outbox() appoutbox.Outbox           { return NewOutboxWriter(u.tx) }

func (u *Unit) Commit(context.Context) error {
	return u.tx.Commit()
}

func (u *Unit) Rollback(context.Context) error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

var _ uow.UoWFactory = Factory{}
