package booking

import "testing"

func TestTransitionTable(t *testing.T) {
	edges := map[Status][]Status{
		StatusPending:              {StatusAwaitingPayment, StatusCancelled},
		StatusAwaitingPayment:      {StatusAwaitingConfirmation, StatusExpired, StatusCancelled},
		StatusAwaitingConfirmation: {StatusConfirmed, StatusPaymentFailed, StatusCancelled},
		StatusPaymentFailed:        {StatusAwaitingPayment, StatusCancelled},
		StatusConfirmed:            {StatusCancelled, StatusCompleted},
		StatusExpired:              {StatusCancelled},
	}
	for _, from := range Statuses {
		allowed := map[Status]bool{}
		for _, to := range edges[from] {
			allowed[to] = true
		}
		for _, to := range Statuses {
			if got := IsValidTransition(from, to); got != allowed[to] {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, allowed[to], got)
			}
		}
		if len(AllowedTargets(from)) != len(edges[from]) {
			t.Fatalf("%s: expected %d targets, got %v", from, len(edges[from]), AllowedTargets(from))
		}
	}
}

func TestTerminalAndBlockingStatuses(t *testing.T) {
	for _, s := range Statuses {
		terminal := s == StatusCancelled || s == StatusCompleted
		if s.IsTerminal() != terminal {
			t.Fatalf("%s: expected terminal=%v", s, terminal)
		}
		blocking := s == StatusPending || s == StatusAwaitingPayment || s == StatusAwaitingConfirmation || s == StatusConfirmed
		if s.IsBlocking() != blocking {
			t.Fatalf("%s: expected blocking=%v", s, blocking)
		}
	}
	if got := len(BlockingStatuses()); got != 4 {
		t.Fatalf("expected 4 blocking statuses, got %d", got)
	}
}

func TestAllowedTargetsReturnsCopy(t *testing.T) {
	targets := AllowedTargets(StatusPending)
	targets[0] = StatusCompleted
	if !IsValidTransition(StatusPending, StatusAwaitingPayment) {
		t.Fatalf("mutating the returned slice must not change the table")
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("awaiting_payment"); !ok || s != StatusAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %q %v", s, ok)
	}
	if _, ok := ParseStatus("ACCEPTED"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}
