package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"staybook/internal/infra/broker/kafka"
)

type memInbox struct {
	seen map[string]bool
}

func (m *memInbox) Claim(_ context.Context, id string) (bool, error) {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[id] {
		return true, nil
	}
	m.seen[id] = true
	return false, nil
}

func (m *memInbox) Release(_ context.Context, id string) error {
	delete(m.seen, id)
	return nil
}

type sent struct {
	to, template string
}

type recordingNotifier struct {
	sent []sent
	fail error
}

func (r *recordingNotifier) Send(_ context.Context, to, template string, _ any) error {
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, sent{to, template})
	return nil
}

func delivery(t *testing.T, id, typ string, data map[string]any) kafka.Delivery {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"id": id, "type": typ, "subject": "b-1", "data": data})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Delivery{Topic: "booking.events.v1", Key: "b-1", Value: raw}
}

func TestCreatedNotifiesHostAndGuest(t *testing.T) {
	n := &recordingNotifier{}
	h := &EventHandler{Inbox: &memInbox{}, Notifier: n}
	d := delivery(t, "evt-1", "booking.created.v1", map[string]any{"guest_id": "g-1", "host_id": "h-1"})

	if err := h.Handle(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.sent) != 2 || n.sent[0] != (sent{"h-1", "booking_request_received"}) || n.sent[1] != (sent{"g-1", "booking_request_sent"}) {
		t.Fatalf("unexpected notifications: %+v", n.sent)
	}
}

func TestDuplicateDeliveryIsSkipped(t *testing.T) {
	n := &recordingNotifier{}
	h := &EventHandler{Inbox: &memInbox{}, Notifier: n}
	d := delivery(t, "evt-2", "booking.expired.v1", map[string]any{"guest_id": "g-1"})

	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(n.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(n.sent))
	}
}

func TestFailedSendIsRetriedOnRedelivery(t *testing.T) {
	n := &recordingNotifier{fail: errors.New("smtp down")}
	inbox := &memInbox{}
	h := &EventHandler{Inbox: inbox, Notifier: n}
	d := delivery(t, "evt-3", "booking.approved.v1", map[string]any{"guest_id": "g-1"})

	if err := h.Handle(context.Background(), d); err == nil {
		t.Fatalf("expected send failure")
	}
	n.fail = nil
	if err := h.Handle(context.Background(), d); err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}
	if len(n.sent) != 1 || n.sent[0].template != "booking_approved_pay_now" {
		t.Fatalf("unexpected notifications: %+v", n.sent)
	}
}

func TestPaymentSubmittedReachesOps(t *testing.T) {
	n := &recordingNotifier{}
	h := &EventHandler{Inbox: &memInbox{}, Notifier: n, OpsRecipient: "payments@staybook"}
	d := delivery(t, "evt-4", "booking.payment_submitted.v1", map[string]any{"guest_id": "g-1"})

	if err := h.Handle(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.sent) != 2 || n.sent[1].to != "payments@staybook" {
		t.Fatalf("unexpected notifications: %+v", n.sent)
	}
}

func TestMalformedAndUnknownEventsAreDropped(t *testing.T) {
	n := &recordingNotifier{}
	h := &EventHandler{Inbox: &memInbox{}, Notifier: n}
	if err := h.Handle(context.Background(), kafka.Delivery{Value: []byte("not json")}); err != nil {
		t.Fatalf("expected malformed event to be dropped, got %v", err)
	}
	if err := h.Handle(context.Background(), delivery(t, "evt-5", "listing.updated.v1", nil)); err != nil {
		t.Fatalf("expected unknown event to be ignored, got %v", err)
	}
	if len(n.sent) != 0 {
		t.Fatalf("expected no notifications, got %+v", n.sent)
	}
}
