package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"staybook/internal/app/policies"
	"staybook/internal/domain/booking"
	"staybook/internal/infra/broker/kafka"
)

// Inbox remembers which events a consumer already handled.
type Inbox interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type recipient int

const (
	toGuest recipient = iota
	toHost
	toOps
)

type route struct {
	to       recipient
	template string
}

var routes = map[string][]route{
	booking.EventCreated: {
		{toHost, "booking_request_received"},
		{toGuest, "booking_request_sent"},
	},
	booking.EventApproved:         {{toGuest, "booking_approved_pay_now"}},
	booking.EventPaymentSubmitted: {{toGuest, "payment_under_review"}, {toOps, "payment_needs_review"}},
	booking.EventPaymentConfirmed: {{toGuest, "booking_confirmed"}},
	booking.EventPaymentRejected:  {{toGuest, "payment_rejected"}},
	booking.EventCancelled:        {{toGuest, "booking_cancelled"}},
	booking.EventExpired:          {{toGuest, "booking_expired"}},
	booking.EventCompleted:        {{toGuest, "stay_completed"}},
}

type envelope struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Subject string         `json:"subject"`
	Data    map[string]any `json:"data"`
}

// EventHandler turns relayed lifecycle events into notifications. Each event
// is handled once per consumer; a failed send releases the inbox entry so a
// redelivery tries again.
type EventHandler struct {
	Inbox        Inbox
	Notifier     policies.Notifier
	OpsRecipient string
	Logger       *slog.Logger
}

func (h *EventHandler) Handle(ctx context.Context, d kafka.Delivery) error {
	var env envelope
	if err := json.Unmarshal(d.Value, &env); err != nil || env.ID == "" {
		h.logger().Warn("dropping malformed event", slog.String("topic", d.Topic), slog.String("key", d.Key))
		return nil
	}
	name := strings.TrimSuffix(env.Type, ".v1")
	plan, ok := routes[name]
	if !ok {
		return nil
	}
	seen, err := h.Inbox.Claim(ctx, env.ID)
	if err != nil {
		return fmt.Errorf("notify: inbox claim: %w", err)
	}
	if seen {
		h.logger().Debug("duplicate event skipped", slog.String("event_id", env.ID))
		return nil
	}
	if err := h.dispatch(ctx, env, plan); err != nil {
		if rerr := h.Inbox.Release(ctx, env.ID); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

func (h *EventHandler) dispatch(ctx context.Context, env envelope, plan []route) error {
	for _, r := range plan {
		to := h.recipientFor(r.to, env.Data)
		if to == "" {
			continue
		}
		data := map[string]any{"booking_id": env.Subject}
		for k, v := range env.Data {
			data[k] = v
		}
		if err := h.Notifier.Send(ctx, to, r.template, data); err != nil {
			return fmt.Errorf("notify: send %s to %s: %w", r.template, to, err)
		}
	}
	return nil
}

func (h *EventHandler) recipientFor(r recipient, data map[string]any) string {
	switch r {
	case toGuest:
		s, _ := data["guest_id"].(string)
		return s
	case toHost:
		s, _ := data["host_id"].(string)
		return s
	default:
		return h.OpsRecipient
	}
}

func (h *EventHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ kafka.MessageHandler = (*EventHandler)(nil)
