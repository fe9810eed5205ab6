package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

type harness struct {
	engine *Engine
	store  *memory.Store
	now    time.Time
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{store: memory.NewStore(), now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	h.store.PutProperty(property.Property{
		ID:           "villa",
		HostID:       "host-1",
		MaxGuests:    4,
		NightlyPrice: money.Must(10000, "USD"),
		CleaningFee:  money.Must(2000, "USD"),
	})
	engine, err := NewEngine(h.store, h.store, cfg,
		WithClock(func() time.Time { return h.now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h.engine = engine
	return h
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func (h *harness) create(t *testing.T, guest, in, out string) *booking.Booking {
	t.Helper()
	b, err := h.engine.Create(context.Background(), CreateRequest{
		PropertyID: "villa",
		GuestID:    guest,
		CheckIn:    day(in),
		CheckOut:   day(out),
		Guests:     2,
	})
	if err != nil {
		t.Fatalf("create %s..%s: %v", in, out, err)
	}
	return b
}

func (h *harness) eventNames() []string {
	var names []string
	for _, rec := range h.store.Records() {
		names = append(names, rec.Name)
	}
	return names
}

func TestCreateAndApproveFreezeWorkedExample(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	if b.Status != booking.StatusPending {
		t.Fatalf("expected pending, got %s", b.Status)
	}
	if b.Price.BasePrice.Amount != 30000 || b.Price.ServiceFee.Amount != 3600 || b.Price.Taxes.Amount != 2800 || b.Price.Total.Amount != 38400 {
		t.Fatalf("unexpected price %+v", b.Price)
	}

	approved, err := h.engine.Approve(ctx, b.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != booking.StatusAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s", approved.Status)
	}
	if approved.Commission == nil || approved.Commission.Commission.Amount != 3800 || approved.Commission.HostPayout.Amount != 34600 {
		t.Fatalf("expected commission 38 and payout 346, got %+v", approved.Commission)
	}
	if approved.Payment.Deadline == nil || !approved.Payment.Deadline.Equal(h.now.Add(2*time.Hour)) {
		t.Fatalf("expected deadline two hours out, got %v", approved.Payment.Deadline)
	}
}

func TestCommissionUsesEngineRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommissionRate = 1500
	h := newHarness(t, cfg)
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	approved, err := h.engine.Approve(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Commission.Commission.Amount != 5800 || approved.Commission.HostPayout.Amount != 32600 {
		t.Fatalf("expected 58/326 split at 15%%, got %+v", approved.Commission)
	}
}

func TestHappyPathEmitsOneEventPerTransition(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")

	steps := []func() (*booking.Booking, error){
		func() (*booking.Booking, error) { return h.engine.Approve(ctx, b.ID) },
		func() (*booking.Booking, error) {
			return h.engine.MarkPaid(ctx, b.ID, PaymentSubmission{Method: "bank_transfer", Reference: "TX-9", ProofRef: "s3://proofs/r.png"})
		},
		func() (*booking.Booking, error) {
			return h.engine.ConfirmPayment(ctx, b.ID, "ops-1", "matched statement")
		},
		func() (*booking.Booking, error) { return h.engine.Complete(ctx, b.ID) },
	}
	var last *booking.Booking
	for i, step := range steps {
		var err error
		if last, err = step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if last.Status != booking.StatusCompleted {
		t.Fatalf("expected completed, got %s", last.Status)
	}
	if last.Payment.ProofRef != "s3://proofs/r.png" || last.Payment.ConfirmedBy != "ops-1" || last.Payment.ConfirmedAt == nil {
		t.Fatalf("payment fields not kept: %+v", last.Payment)
	}
	want := []string{booking.EventCreated, booking.EventApproved, booking.EventPaymentSubmitted, booking.EventPaymentConfirmed, booking.EventCompleted}
	got := h.eventNames()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestCreateRejectsOverlapButAllowsBackToBack(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.create(t, "guest-1", "2026-05-10", "2026-05-13")

	_, err := h.engine.Create(context.Background(), CreateRequest{PropertyID: "villa", GuestID: "guest-2", CheckIn: day("2026-05-12"), CheckOut: day("2026-05-15"), Guests: 1})
	if !errors.Is(err, booking.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	h.create(t, "guest-2", "2026-05-13", "2026-05-15")
	h.create(t, "guest-3", "2026-05-08", "2026-05-10")
}

func TestCancelledBookingReleasesDates(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	cancelled, err := h.engine.Cancel(context.Background(), b.ID, "  plans changed ")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.CancelledAt == nil || cancelled.CancellationReason != "plans changed" {
		t.Fatalf("expected cancellation stamped, got %+v", cancelled)
	}
	h.create(t, "guest-2", "2026-05-10", "2026-05-13")
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.store.PutOverride(property.Override{PropertyID: "villa", Date: day("2026-06-02"), Blocked: true})
	cases := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"checkout before checkin", CreateRequest{PropertyID: "villa", GuestID: "g", CheckIn: day("2026-05-10"), CheckOut: day("2026-05-10"), Guests: 1}, booking.ErrInvalidInput},
		{"past checkin", CreateRequest{PropertyID: "villa", GuestID: "g", CheckIn: day("2026-04-10"), CheckOut: day("2026-04-12"), Guests: 1}, booking.ErrInvalidInput},
		{"no guests", CreateRequest{PropertyID: "villa", GuestID: "g", CheckIn: day("2026-05-10"), CheckOut: day("2026-05-12"), Guests: 0}, booking.ErrInvalidInput},
		{"too many guests", CreateRequest{PropertyID: "villa", GuestID: "g", CheckIn: day("2026-05-10"), CheckOut: day("2026-05-12"), Guests: 5}, booking.ErrCapacityExceeded},
		{"unknown property", CreateRequest{PropertyID: "nope", GuestID: "g", CheckIn: day("2026-05-10"), CheckOut: day("2026-05-12"), Guests: 1}, property.ErrNotFound},
		{"blocked night", CreateRequest{PropertyID: "villa", GuestID: "g", CheckIn: day("2026-06-01"), CheckOut: day("2026-06-04"), Guests: 1}, booking.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.engine.Create(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if n := len(h.store.Records()); n != 0 {
		t.Fatalf("expected no events for rejected creates, got %d", n)
	}
}

func TestInvalidTransitionReportsCurrentStatus(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")

	_, err := h.engine.Complete(context.Background(), b.ID)
	if !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	current, ok := booking.CurrentStatus(err)
	if !ok || current != booking.StatusPending {
		t.Fatalf("expected current pending, got %q", current)
	}
	stored, _ := h.engine.Get(context.Background(), b.ID)
	if stored.Status != booking.StatusPending || !stored.UpdatedAt.Equal(b.UpdatedAt) {
		t.Fatalf("failed transition must not touch the booking: %+v", stored)
	}
}

func TestUnknownBookingIsNotFound(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	if _, err := h.engine.Approve(context.Background(), "missing"); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentApproveHasOneWinner(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")

	const racers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.engine.Approve(context.Background(), b.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful approve, got %d", successes)
	}
	for _, err := range failures {
		if !errors.Is(err, booking.ErrConcurrentModification) && !errors.Is(err, booking.ErrInvalidTransition) {
			t.Fatalf("unexpected loser error: %v", err)
		}
		if current, ok := booking.CurrentStatus(err); !ok || current != booking.StatusAwaitingPayment {
			t.Fatalf("expected loser to see awaiting_payment, got %q", current)
		}
	}
	approvals := 0
	for _, name := range h.eventNames() {
		if name == booking.EventApproved {
			approvals++
		}
	}
	if approvals != 1 {
		t.Fatalf("expected one approved event, got %d", approvals)
	}
}

func TestConcurrentCreateOfSameDatesHasOneWinner(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Create(context.Background(), CreateRequest{PropertyID: "villa", GuestID: "g", CheckIn: day("2026-05-10"), CheckOut: day("2026-05-13"), Guests: 1})
			if err != nil && !errors.Is(err, booking.ErrUnavailable) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected one booking to win the dates, got %d", wins)
	}
}

func TestExpireHonoursDeadline(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	if _, err := h.engine.Approve(ctx, b.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	h.now = h.now.Add(2 * time.Hour)
	if _, err := h.engine.Expire(ctx, b.ID); !errors.Is(err, booking.ErrDeadlineNotReached) {
		t.Fatalf("expected ErrDeadlineNotReached at the deadline, got %v", err)
	}

	h.now = h.now.Add(time.Second)
	expired, err := h.engine.Expire(ctx, b.ID)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired.Status != booking.StatusExpired || expired.CancelledAt == nil {
		t.Fatalf("expected expired with cancelled_at, got %+v", expired)
	}
	h.create(t, "guest-2", "2026-05-10", "2026-05-13")
}

func TestPaidBeforeDeadlineIsNotExpired(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	if _, err := h.engine.Approve(ctx, b.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := h.engine.MarkPaid(ctx, b.ID, PaymentSubmission{Method: "card", Reference: "R"}); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	h.now = h.now.Add(5 * time.Hour)
	ids, err := h.engine.ExpiredAwaitingPayment(ctx, booking.DeadlineCursor{}, 10)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no expiry candidates, got %v (%v)", ids, err)
	}
	if _, err := h.engine.Expire(ctx, b.ID); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRejectedPaymentCanBeRetried(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	mustStep(t, func() error { _, err := h.engine.Approve(ctx, b.ID); return err })
	mustStep(t, func() error {
		_, err := h.engine.MarkPaid(ctx, b.ID, PaymentSubmission{Method: "card", Reference: "R1"})
		return err
	})
	rejected, err := h.engine.RejectPayment(ctx, b.ID, "amount mismatch")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != booking.StatusPaymentFailed || rejected.Payment.Notes != "amount mismatch" {
		t.Fatalf("expected payment_failed with reason, got %+v", rejected)
	}
	retried, err := h.engine.MarkPaid(ctx, b.ID, PaymentSubmission{Method: "card", Reference: "R2"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != booking.StatusAwaitingConfirmation || retried.Payment.Reference != "R2" {
		t.Fatalf("expected awaiting_confirmation with new reference, got %+v", retried)
	}
}

func TestRetryAfterDatesTakenIsUnavailable(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	mustStep(t, func() error { _, err := h.engine.Approve(ctx, b.ID); return err })
	mustStep(t, func() error {
		_, err := h.engine.MarkPaid(ctx, b.ID, PaymentSubmission{Method: "card", Reference: "R1"})
		return err
	})
	mustStep(t, func() error { _, err := h.engine.RejectPayment(ctx, b.ID, "bounced"); return err })

	h.create(t, "guest-2", "2026-05-11", "2026-05-12")

	if _, err := h.engine.MarkPaid(ctx, b.ID, PaymentSubmission{Method: "card", Reference: "R2"}); !errors.Is(err, booking.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	stored, _ := h.engine.Get(ctx, b.ID)
	if stored.Status != booking.StatusPaymentFailed {
		t.Fatalf("expected booking left in payment_failed, got %s", stored.Status)
	}
}

func TestTerminalStatusesRejectEverything(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	mustStep(t, func() error { _, err := h.engine.Cancel(ctx, b.ID, ""); return err })

	if _, err := h.engine.Cancel(ctx, b.ID, "again"); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("expected cancel of cancelled to fail, got %v", err)
	}
	if _, err := h.engine.Approve(ctx, b.ID); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("expected approve of cancelled to fail, got %v", err)
	}
}

func TestQuoteMatchesCreatePrice(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	b := h.create(t, "guest-1", "2026-05-10", "2026-05-13")
	q, err := h.engine.Quote(context.Background(), "villa", b.Range)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q != b.Price {
		t.Fatalf("expected quote %+v to equal booking price %+v", q, b.Price)
	}
}

func TestStayLengthIsCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxNights = 30
	h := newHarness(t, cfg)
	ctx := context.Background()
	h.create(t, "guest-1", "2026-06-01", "2026-07-01")

	for _, out := range []string{"2026-08-01", "2400-01-01"} {
		_, err := h.engine.Create(ctx, CreateRequest{PropertyID: "villa", GuestID: "guest-2", CheckIn: day("2026-07-01"), CheckOut: day(out), Guests: 1})
		if !errors.Is(err, booking.ErrInvalidInput) {
			t.Fatalf("create until %s: expected ErrInvalidInput, got %v", out, err)
		}
		dr, _ := daterange.New(day("2026-07-01"), day(out))
		if _, err := h.engine.Quote(ctx, "villa", dr); !errors.Is(err, booking.ErrInvalidInput) {
			t.Fatalf("quote until %s: expected ErrInvalidInput, got %v", out, err)
		}
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	store := memory.NewStore()
	cfg := DefaultConfig()
	cfg.PaymentWindow = 0
	if _, err := NewEngine(store, store, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func mustStep(t *testing.T, fn func() error) {
	t.Helper()
	if err := fn(); err != nil {
		t.Fatalf("step failed: %v", err)
	}
}

func TestStoredBookingChangesOnlyDocumentedFields(t *testing.T) {
	type step struct {
		name   string
		run    func(ctx context.Context, h *harness, id booking.ID) error
		masked func(b *booking.Booking)
	}
	approve := step{"approve", func(ctx context.Context, h *harness, id booking.ID) error {
		_, err := h.engine.Approve(ctx, id)
		return err
	}, func(b *booking.Booking) { b.Commission, b.Payment.Deadline = nil, nil }}
	markPaid := func(ref string) step {
		return step{"mark paid " + ref, func(ctx context.Context, h *harness, id booking.ID) error {
			_, err := h.engine.MarkPaid(ctx, id, PaymentSubmission{Method: "bank_transfer", Reference: ref, ProofRef: "s3://proofs/" + ref})
			return err
		}, func(b *booking.Booking) { b.Payment.Method, b.Payment.Reference, b.Payment.ProofRef = "", "", "" }}
	}
	paths := map[string][]step{
		"paid and completed": {
			approve,
			markPaid("TX-1"),
			{"reject", func(ctx context.Context, h *harness, id booking.ID) error {
				_, err := h.engine.RejectPayment(ctx, id, "amount mismatch")
				return err
			}, func(b *booking.Booking) { b.Payment.Notes = "" }},
			markPaid("TX-2"),
			{"confirm", func(ctx context.Context, h *harness, id booking.ID) error {
				_, err := h.engine.ConfirmPayment(ctx, id, "admin-1", "")
				return err
			}, func(b *booking.Booking) { b.Payment.ConfirmedBy, b.Payment.ConfirmedAt, b.Payment.Notes = "", nil, "" }},
			{"complete", func(ctx context.Context, h *harness, id booking.ID) error {
				_, err := h.engine.Complete(ctx, id)
				return err
			}, func(*booking.Booking) {}},
		},
		"expired then cancelled": {
			approve,
			{"expire", func(ctx context.Context, h *harness, id booking.ID) error {
				h.now = h.now.Add(3 * time.Hour)
				_, err := h.engine.Expire(ctx, id)
				return err
			}, func(b *booking.Booking) { b.CancelledAt = nil }},
			{"cancel", func(ctx context.Context, h *harness, id booking.ID) error {
				_, err := h.engine.Cancel(ctx, id, "cleanup")
				return err
			}, func(b *booking.Booking) { b.CancelledAt, b.CancellationReason = nil, "" }},
		},
	}
	for name, steps := range paths {
		h := newHarness(t, DefaultConfig())
		ctx := context.Background()
		id := h.create(t, "guest-1", "2026-05-10", "2026-05-13").ID
		for _, st := range steps {
			before, err := h.engine.Get(ctx, id)
			if err != nil {
				t.Fatalf("%s/%s: read before: %v", name, st.name, err)
			}
			h.now = h.now.Add(time.Minute)
			if err := st.run(ctx, h, id); err != nil {
				t.Fatalf("%s/%s: %v", name, st.name, err)
			}
			after, err := h.engine.Get(ctx, id)
			if err != nil {
				t.Fatalf("%s/%s: read after: %v", name, st.name, err)
			}
			if !after.UpdatedAt.After(before.UpdatedAt) {
				t.Fatalf("%s/%s: expected updated_at to move", name, st.name)
			}
			before, after = before.Clone(), after.Clone()
			for _, b := range []*booking.Booking{before, after} {
				b.Status, b.UpdatedAt = "", time.Time{}
				st.masked(b)
			}
			if !reflect.DeepEqual(before, after) {
				t.Fatalf("%s/%s: undocumented field changed:\nbefore %+v\nafter  %+v", name, st.name, before, after)
			}
		}
	}
}
