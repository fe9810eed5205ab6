package middleware

import (
	"context"
	"errors"
	"testing"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
)

type createThing struct {
	Ref  string
	Name string
}

func (c createThing) Key() string            { return "thing.create" }
func (c createThing) IdempotencyKey() string { return c.Ref }
func (c createThing) ResultPrototype() any   { return &thingResult{} }

type otherThing struct{ key string }

func (c otherThing) Key() string            { return "thing.other" }
func (c otherThing) IdempotencyKey() string { return c.key }
func (c otherThing) ResultPrototype() any   { return &thingResult{} }

type thingResult struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type mapStore map[string]IdempotencyRecord

func (s mapStore) Reserve(_ context.Context, rec IdempotencyRecord) (IdempotencyRecord, bool, error) {
	if held, ok := s[rec.Key]; ok {
		return held, false, nil
	}
	s[rec.Key] = rec
	return rec, true, nil
}

func (s mapStore) Complete(_ context.Context, rec IdempotencyRecord) error {
	s[rec.Key] = rec
	return nil
}

func (s mapStore) Release(_ context.Context, key string) error {
	if s[key].Pending {
		delete(s, key)
	}
	return nil
}

func newThingBus(calls *int, fail *bool) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.Register(bus, "thing.create", commands.HandlerFunc[createThing, *thingResult](func(_ context.Context, c createThing) (*thingResult, error) {
		*calls++
		if *fail {
			return nil, errors.New("transient")
		}
		return &thingResult{ID: *calls, Name: c.Name}, nil
	}))
	commands.Register(bus, "thing.other", commands.HandlerFunc[otherThing, *thingResult](func(context.Context, otherThing) (*thingResult, error) {
		return &thingResult{}, nil
	}))
	return bus
}

func TestIdempotencyReplaysFirstResult(t *testing.T) {
	calls, fail := 0, false
	bus := ChainCommands(newThingBus(&calls, &fail), Idempotency(mapStore{}, nil))
	ctx := context.Background()

	first, err := commands.Dispatch[createThing, *thingResult](ctx, bus, createThing{Ref: "k", Name: "a"})
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	second, err := commands.Dispatch[createThing, *thingResult](ctx, bus, createThing{Ref: "k", Name: "a"})
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	if *first != *second {
		t.Fatalf("expected replayed %+v, got %+v", first, second)
	}
}

func TestIdempotencyDoesNotRememberFailures(t *testing.T) {
	calls, fail := 0, true
	bus := ChainCommands(newThingBus(&calls, &fail), Idempotency(mapStore{}, nil))
	ctx := context.Background()

	if _, err := commands.Dispatch[createThing, *thingResult](ctx, bus, createThing{Ref: "k"}); err == nil {
		t.Fatalf("expected failure")
	}
	fail = false
	if _, err := commands.Dispatch[createThing, *thingResult](ctx, bus, createThing{Ref: "k"}); err != nil {
		t.Fatalf("expected retry to run, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected two handler calls, got %d", calls)
	}
}

func TestIdempotencyKeyReuseAcrossCommands(t *testing.T) {
	calls, fail := 0, false
	bus := ChainCommands(newThingBus(&calls, &fail), Idempotency(mapStore{}, nil))
	ctx := context.Background()
	if _, err := commands.Dispatch[createThing, *thingResult](ctx, bus, createThing{Ref: "shared"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	_, err := commands.Dispatch[otherThing, *thingResult](ctx, bus, otherThing{key: "shared"})
	if !errors.Is(err, ErrIdempotencyReuse) {
		t.Fatalf("expected ErrIdempotencyReuse, got %v", err)
	}
}

func TestIdempotencyKeyReuseWithDifferentPayload(t *testing.T) {
	calls, fail := 0, false
	bus := ChainCommands(newThingBus(&calls, &fail), Idempotency(mapStore{}, nil))
	ctx := context.Background()
	if _, err := commands.Dispatch[createThing, *thingResult](ctx, bus, createThing{Ref: "k", Name: "a"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	_, err := commands.Dispatch[createThing, *thingResult](ctx, bus, createThing{Ref: "k", Name: "b"})
	if !errors.Is(err, ErrIdempotencyReuse) {
		t.Fatalf("expected ErrIdempotencyReuse, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
}

func TestIdempotencyRejectsRetryWhileFirstIsRunning(t *testing.T) {
	store := mapStore{}
	bus := commands.NewInMemoryBus()
	var (
		chained    commands.Bus
		inner      error
		innerCalls int
	)
	commands.Register(bus, "thing.create", commands.HandlerFunc[createThing, *thingResult](func(ctx context.Context, c createThing) (*thingResult, error) {
		innerCalls++
		if innerCalls == 1 {
			_, inner = commands.Dispatch[createThing, *thingResult](ctx, chained, c)
		}
		return &thingResult{ID: innerCalls, Name: c.Name}, nil
	}))
	chained = ChainCommands(bus, Idempotency(store, nil))

	res, err := commands.Dispatch[createThing, *thingResult](context.Background(), chained, createThing{Ref: "k", Name: "a"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !errors.Is(inner, ErrIdempotencyInFlight) {
		t.Fatalf("expected ErrIdempotencyInFlight for the overlapping retry, got %v", inner)
	}
	if innerCalls != 1 || res.ID != 1 {
		t.Fatalf("expected a single handler run, got calls=%d result=%+v", innerCalls, res)
	}
	if rec := store["k"]; rec.Pending || len(rec.Payload) == 0 {
		t.Fatalf("expected completed record, got %+v", rec)
	}
	replayed, err := commands.Dispatch[createThing, *thingResult](context.Background(), chained, createThing{Ref: "k", Name: "a"})
	if err != nil || replayed.ID != 1 {
		t.Fatalf("expected replay after completion, got %+v (%v)", replayed, err)
	}
}

func TestIdempotencyFailureReleasesKey(t *testing.T) {
	calls, fail := 0, true
	store := mapStore{}
	bus := ChainCommands(newThingBus(&calls, &fail), Idempotency(store, nil))
	if _, err := commands.Dispatch[createThing, *thingResult](context.Background(), bus, createThing{Ref: "k"}); err == nil {
		t.Fatalf("expected failure")
	}
	if _, ok := store["k"]; ok {
		t.Fatalf("expected reservation released, got %+v", store["k"])
	}
}

func TestEmptyKeyBypassesStore(t *testing.T) {
	calls, fail := 0, false
	store := mapStore{}
	bus := ChainCommands(newThingBus(&calls, &fail), Idempotency(store, nil))
	for i := 0; i < 2; i++ {
		if _, err := commands.Dispatch[createThing, *thingResult](context.Background(), bus, createThing{}); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	if calls != 2 || len(store) != 0 {
		t.Fatalf("expected no caching without key, got calls=%d stored=%d", calls, len(store))
	}
}

type recordingGuard struct {
	name  string
	order *[]string
	err   error
}

func (g recordingGuard) Authorize(_ context.Context, _ any) error {
	*g.order = append(*g.order, g.name)
	return g.err
}

func (g recordingGuard) Validate(_ context.Context, _ any) error {
	*g.order = append(*g.order, g.name)
	return g.err
}

func TestGuardsRunOutermostFirstAndShortCircuit(t *testing.T) {
	calls, fail := 0, false
	var order []string
	denied := errors.New("denied")
	bus := ChainCommands(newThingBus(&calls, &fail),
		Authorization(recordingGuard{name: "authz", order: &order, err: denied}),
		Validation(recordingGuard{name: "validate", order: &order}),
	)
	_, err := commands.Dispatch[createThing, *thingResult](context.Background(), bus, createThing{})
	if !errors.Is(err, denied) {
		t.Fatalf("expected denial, got %v", err)
	}
	if len(order) != 1 || order[0] != "authz" || calls != 0 {
		t.Fatalf("expected only authz to run, got order=%v calls=%d", order, calls)
	}
}

type pingQuery struct{}

func (pingQuery) Key() string { return "ping" }

func TestQueryGuards(t *testing.T) {
	bus := queries.NewInMemoryBus()
	queries.Register(bus, "ping", queries.HandlerFunc[pingQuery, string](func(context.Context, pingQuery) (string, error) {
		return "pong", nil
	}))
	var order []string
	chained := ChainQueries(bus,
		QueryAuthorization(recordingGuard{name: "authz", order: &order}),
		QueryValidation(recordingGuard{name: "validate", order: &order}),
	)
	got, err := queries.Ask[pingQuery, string](context.Background(), chained, pingQuery{})
	if err != nil || got != "pong" {
		t.Fatalf("expected pong, got %q (%v)", got, err)
	}
	if len(order) != 2 || order[0] != "authz" || order[1] != "validate" {
		t.Fatalf("unexpected guard order %v", order)
	}
}

func TestUnknownCommandIsReported(t *testing.T) {
	bus := commands.NewInMemoryBus()
	_, err := commands.Dispatch[createThing, *thingResult](context.Background(), bus, createThing{})
	if !errors.Is(err, commands.ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
}
