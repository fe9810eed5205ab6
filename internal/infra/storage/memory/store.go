package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	infraoutbox "staybook/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type outboxRow struct {
	record      appoutbox.EventRecord
	state       string
	attempts    int
	nextAttempt time.Time
	lastError   string
}

// Store is an in-process stand-in for the relational store. Every write
// happens under one mutex so that the status compare-and-swap and the
// overlap guarantee hold exactly as they do in Postgres.
type Store struct {
	mu         sync.Mutex
	bookings   map[booking.ID]*booking.Booking
	properties map[property.ID]property.Property
	overrides  map[property.ID]map[string]property.Override
	outbox     []*outboxRow
	now        func() time.Time
}

func NewStore() *Store {
	return &Store{
		bookings:   make(map[booking.ID]*booking.Booking),
		properties: make(map[property.ID]property.Property),
		overrides:  make(map[property.ID]map[string]property.Override),
		now:        time.Now,
	}
}

// SetClock replaces the clock used for outbox scheduling.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutProperty seeds a property snapshot.
func (s *Store) PutProperty(p property.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = p
}

// PutOverride seeds a per-date override.
func (s *Store) PutOverride(o property.Override) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, ok := s.overrides[o.PropertyID]
	if !ok {
		byDate = make(map[string]property.Override)
		s.overrides[o.PropertyID] = byDate
	}
	o.Date = daterange.Day(o.Date)
	byDate[o.Date.Format(daterange.Layout)] = o
}

func (s *Store) Property(_ context.Context, id property.ID) (*property.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, property.ErrNotFound
	}
	return &p, nil
}

func (s *Store) Overrides(_ context.Context, id property.ID, r daterange.DateRange) ([]property.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []property.Override
	for _, o := range s.overrides[id] {
		if r.ContainsDate(o.Date) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Begin opens a unit. Writes are applied immediately and undone on
// Rollback; outbox records become visible to the relay only on Commit.
func (s *Store) Begin(_ context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return &Unit{store: s, readOnly: opts.ReadOnly}, nil
}

// Records returns every outbox record ever committed, oldest first.
func (s *Store) Records() []appoutbox.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appoutbox.EventRecord, len(s.outbox))
	for i, row := range s.outbox {
		out[i] = row.record
	}
	return out
}

func (s *Store) Claim(_ context.Context, _ string) (*infraoutbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, row := range s.outbox {
		if (row.state == stateNew || row.state == stateFailed) && !row.nextAttempt.After(now) {
			row.state = stateClaimed
			rec := row.record
			return &infraoutbox.Message{
				ID:         rec.ID,
				Name:       rec.Name,
				Aggregate:  rec.Aggregate,
				Payload:    append([]byte(nil), rec.Payload...),
				Headers:    copyHeaders(rec.Headers),
				OccurredAt: rec.OccurredAt,
				Attempts:   row.attempts,
			}, nil
		}
	}
	return nil, nil
}

func (s *Store) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.row(id); row != nil {
		row.state = stateSent
	}
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.row(id); row != nil {
		row.state = stateFailed
		row.attempts++
		row.nextAttempt = next
		row.lastError = errMsg
	}
	return nil
}

func (s *Store) row(id string) *outboxRow {
	for _, row := range s.outbox {
		if row.record.ID == id {
			return row
		}
	}
	return nil
}

// conflictLocked reports whether b would share a night with another blocking
// booking of the same property. Callers hold s.mu.
func (s *Store) conflictLocked(b *booking.Booking) bool {
	if !b.Status.IsBlocking() {
		return false
	}
	for id, other := range s.bookings {
		if id == b.ID || other.PropertyID != b.PropertyID || !other.Status.IsBlocking() {
			continue
		}
		if other.Range.Overlaps(b.Range) {
			return true
		}
	}
	return false
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var (
	_ uow.UoWFactory          = (*Store)(nil)
	_ property.Reader         = (*Store)(nil)
	_ property.OverrideReader = (*Store)(nil)
	_ infraoutbox.Store       = (*Store)(nil)
)
