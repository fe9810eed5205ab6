package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appoutbox "staybook/internal/app/outbox"
	infraoutbox "staybook/internal/infra/outbox"
)

const (
	outboxNew     = "NEW"
	outboxClaimed = "CLAIMED"
	outboxSent    = "SENT"
	outboxFailed  = "FAILED"
)

// DefaultClaimTimeout is how long a claimed row may stay unsent before
// another relay may take it over.
const DefaultClaimTimeout = 2 * time.Minute

// OutboxWriter appends event records inside the caller's transaction.
type OutboxWriter struct {
	db DBTX
}

func NewOutboxWriter(db DBTX) *OutboxWriter {
	return &OutboxWriter{db: db}
}

func (w *OutboxWriter) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx, `INSERT INTO booking_outbox
			(id, event_type, aggregate_id, payload, headers, occurred_at, state, next_attempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $6)`,
		rec.ID, rec.Name, rec.Aggregate, rec.Payload, headers, rec.OccurredAt.UTC(), outboxNew)
	if err != nil {
		return fmt.Errorf("postgres: append outbox: %w", err)
	}
	return nil
}

// OutboxStore is the relay side. Claims use FOR UPDATE SKIP LOCKED so that
// several relays can drain one table.
type OutboxStore struct {
	DB           *sql.DB
	ClaimTimeout time.Duration
	Now          func() time.Time
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	now := s.now()
	stale := now.Add(-s.claimTimeout())
	var (
		msg     infraoutbox.Message
		headers []byte
	)
	err := s.DB.QueryRowContext(ctx, `UPDATE booking_outbox SET
			state = $1, claimed_by = $2, claimed_at = $3
		WHERE id = (
			SELECT id FROM booking_outbox
			WHERE (state IN ($4, $5) AND next_attempt <= $3)
			   OR (state = $1 AND claimed_at < $6)
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, aggregate_id, payload, headers, occurred_at, attempts`,
		outboxClaimed, workerID, now, outboxNew, outboxFailed, stale,
	).Scan(&msg.ID, &msg.Name, &msg.Aggregate, &msg.Payload, &headers, &msg.OccurredAt, &msg.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: claim outbox: %w", err)
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &msg.Headers); err != nil {
			return nil, fmt.Errorf("postgres: decode outbox headers: %w", err)
		}
	}
	return &msg, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE booking_outbox SET state = $2, last_error = NULL WHERE id = $1`, id, outboxSent)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE booking_outbox SET
			state = $2, attempts = attempts + 1, next_attempt = $3, last_error = $4, claimed_by = NULL
		WHERE id = $1`, id, outboxFailed, next.UTC(), errMsg)
	return err
}

func (s *OutboxStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OutboxStore) claimTimeout() time.Duration {
	if s.ClaimTimeout > 0 {
		return s.ClaimTimeout
	}
	return DefaultClaimTimeout
}

var (
	_ appoutbox.Outbox  = (*OutboxWriter)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)
