package kafka

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestBuildMessageCarriesKeyAndHeaders(t *testing.T) {
	msg := buildMessage("booking.events.v1", "b-1", []byte(`{}`), map[string]string{"ce-id": "evt-1"})
	if msg.Topic != "booking.events.v1" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "b-1" {
		t.Fatalf("expected key b-1, got %q", key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != "ce-id" || string(msg.Headers[0].Value) != "evt-1" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}

func TestToDeliveryFlattensHeaders(t *testing.T) {
	d := toDelivery(&sarama.ConsumerMessage{
		Topic:   "booking.events.v1",
		Key:     []byte("b-1"),
		Value:   []byte(`{"id":"evt-1"}`),
		Headers: []*sarama.RecordHeader{{Key: []byte("ce-type"), Value: []byte("booking.approved.v1")}, nil},
	})
	if d.Key != "b-1" || d.Headers["ce-type"] != "booking.approved.v1" {
		t.Fatalf("unexpected delivery %+v", d)
	}
}
