package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

const keyPrefix = "staybook:property:"

// NewClient builds a client and pings it once. A failed ping is returned so
// the caller can decide to run without the cache.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// PropertyReader caches property snapshots in front of another reader.
// Redis failures are logged and fall through; the cache never decides
// whether a property exists.
type PropertyReader struct {
	Next   property.Reader
	Client *redis.Client
	TTL    time.Duration
	Logger *slog.Logger
}

func (r *PropertyReader) Property(ctx context.Context, id property.ID) (*property.Property, error) {
	key := keyPrefix + string(id)
	raw, err := r.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var doc cachedProperty
		if jerr := json.Unmarshal(raw, &doc); jerr == nil {
			p := doc.toProperty()
			return &p, nil
		}
		r.logger().Warn("property cache entry unreadable", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger().Warn("property cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	p, err := r.Next.Property(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload, jerr := json.Marshal(fromProperty(*p)); jerr == nil {
		if serr := r.Client.Set(ctx, key, payload, r.ttl()).Err(); serr != nil {
			r.logger().Warn("property cache write failed", slog.String("key", key), slog.Any("error", serr))
		}
	}
	return p, nil
}

// Invalidate drops a cached snapshot after the catalogue changes it.
func (r *PropertyReader) Invalidate(ctx context.Context, id property.ID) error {
	return r.Client.Del(ctx, keyPrefix+string(id)).Err()
}

func (r *PropertyReader) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return 5 * time.Minute
}

func (r *PropertyReader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

type cachedProperty struct {
	ID              string      `json:"id"`
	HostID          string      `json:"host_id"`
	Title           string      `json:"title"`
	MaxGuests       int         `json:"max_guests"`
	NightlyPrice    money.Money `json:"nightly_price"`
	CleaningFee     money.Money `json:"cleaning_fee"`
	SecurityDeposit money.Money `json:"security_deposit"`
}

func fromProperty(p property.Property) cachedProperty {
	return cachedProperty{
		ID:              string(p.ID),
		HostID:          p.HostID,
		Title:           p.Title,
		MaxGuests:       p.MaxGuests,
		NightlyPrice:    p.NightlyPrice,
		CleaningFee:     p.CleaningFee,
		SecurityDeposit: p.SecurityDeposit,
	}
}

func (c cachedProperty) toProperty() property.Property {
	return property.Property{
		ID:              property.ID(c.ID),
		HostID:          c.HostID,
		Title:           c.Title,
		MaxGuests:       c.MaxGuests,
		NightlyPrice:    c.NightlyPrice,
		CleaningFee:     c.CleaningFee,
		SecurityDeposit: c.SecurityDeposit,
	}
}

var _ property.Reader = (*PropertyReader)(nil)
