package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Message is a claimed outbox row.
type Message struct {
	ID         string
	Name       string
	Aggregate  string
	Payload    []byte
	Headers    map[string]string
	OccurredAt time.Time
	Attempts   int
}

// Store is the relay side of the transactional outbox. Claim returns nil
// when nothing is due.
type Store interface {
	Claim(ctx context.Context, workerID string) (*Message, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker drains the outbox into a broker. Messages are published as
// CloudEvents keyed by booking id so per-booking ordering survives
// partitioning.
type Worker struct {
	Store       Store
	Producer    Producer
	Breaker     *gobreaker.CircuitBreaker
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewBreaker trips after consecutive publish failures so that a dead broker
// is not hammered on every tick.
func NewBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Warn("outbox breaker state changed", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
			}
		},
	})
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger().Error("outbox drain failed", slog.Any("error", err))
			}
		}
	}
}

// Drain relays up to BatchSize due messages and reports how many were sent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	if w.Store == nil || w.Producer == nil {
		return 0, ErrWorkerNotConfigured
	}
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		ok, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if !ok {
			return sent, nil
		}
		sent++
	}
	return sent, nil
}

// processOnce reports false when the outbox had nothing to send or the
// message could not be published.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	msg, err := w.Store.Claim(ctx, w.workerID())
	if err != nil || msg == nil {
		return false, err
	}
	topic := w.topicFor(msg.Name)
	payload, headers, err := w.formatPayload(msg)
	if err != nil {
		return false, w.fail(ctx, msg, err)
	}
	if err := w.publish(ctx, topic, msg.Aggregate, payload, headers); err != nil {
		return false, w.fail(ctx, msg, err)
	}
	if err := w.Store.MarkSent(ctx, msg.ID); err != nil {
		return false, err
	}
	w.logger().Debug("outbox message relayed", slog.String("event_id", msg.ID), slog.String("type", msg.Name), slog.String("topic", topic))
	return true, nil
}

func (w *Worker) publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if w.Breaker == nil {
		return w.Producer.Publish(ctx, topic, key, payload, headers)
	}
	_, err := w.Breaker.Execute(func() (interface{}, error) {
		return nil, w.Producer.Publish(ctx, topic, key, payload, headers)
	})
	return err
}

func (w *Worker) fail(ctx context.Context, msg *Message, cause error) error {
	w.logger().Warn("outbox publish failed",
		slog.String("event_id", msg.ID),
		slog.String("type", msg.Name),
		slog.Int("attempts", msg.Attempts+1),
		slog.Any("error", cause))
	return w.Store.MarkFailed(ctx, msg.ID, w.nextRetry(msg.Attempts), cause.Error())
}

func (w *Worker) formatPayload(msg *Message) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              msg.ID,
		"type":            msg.Name + ".v1",
		"source":          w.source(),
		"subject":         msg.Aggregate,
		"time":            msg.OccurredAt.UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-id":        msg.ID,
		"ce-type":      msg.Name + ".v1",
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return w.TopicPrefix + base + ".events.v1"
}

func (w *Worker) workerID() string {
	if w.ID == "" {
		w.ID = "relay-" + uuid.NewString()
	}
	return w.ID
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://staybook"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
