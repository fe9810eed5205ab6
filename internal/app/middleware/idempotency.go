package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"staybook/internal/app/commands"
)

// IdempotentCommand is implemented by commands that may be retried safely
// by the client. IdempotencyKey must already be scoped to the caller.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any
}

// IdempotencyRecord is the stored outcome of the first dispatch under a key.
// Fingerprint identifies the request body the key was first used with. A
// record stays Pending while that dispatch is running.
type IdempotencyRecord struct {
	Key         string
	Command     string
	Fingerprint string
	Pending     bool
	Payload     []byte
	OccurredAt  time.Time
}

// IdempotencyStore reserves a key before the command runs so that concurrent
// retries cannot both reach the handler.
type IdempotencyStore interface {
	// Reserve stores rec as pending when the key is free. Otherwise it
	// returns the record already held under the key and false.
	Reserve(ctx context.Context, rec IdempotencyRecord) (IdempotencyRecord, bool, error)
	// Complete attaches the result to a pending reservation.
	Complete(ctx context.Context, rec IdempotencyRecord) error
	// Release drops a pending reservation after a failed dispatch.
	Release(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var (
	errMissingPrototype    = errors.New("middleware: idempotent command requires result prototype")
	ErrIdempotencyReuse    = errors.New("middleware: idempotency key reused for a different request")
	ErrIdempotencyInFlight = errors.New("middleware: request with this idempotency key is still running")
)

// Idempotency replays the stored result of an earlier successful dispatch
// with the same key and request. Failures release the key, so a client may
// retry them under it.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			fp, err := fingerprint(codec, cmd)
			if err != nil {
				return nil, err
			}

			held, reserved, err := store.Reserve(ctx, IdempotencyRecord{
				Key:         key,
				Command:     cmd.Key(),
				Fingerprint: fp,
				Pending:     true,
				OccurredAt:  time.Now().UTC(),
			})
			if err != nil {
				return nil, fmt.Errorf("middleware: idempotency reserve: %w", err)
			}
			if !reserved {
				return replay(codec, idCmd, held, fp)
			}

			result, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, release(ctx, store, key, err)
			}
			payload, err := codec.Encode(result)
			if err != nil {
				return nil, release(ctx, store, key, err)
			}
			err = store.Complete(ctx, IdempotencyRecord{
				Key:         key,
				Command:     cmd.Key(),
				Fingerprint: fp,
				Payload:     payload,
				OccurredAt:  time.Now().UTC(),
			})
			if err != nil {
				return nil, release(ctx, store, key, fmt.Errorf("middleware: idempotency save: %w", err))
			}
			return result, nil
		})
	}
}

// release frees the key even when the request context is already done.
func release(ctx context.Context, store IdempotencyStore, key string, cause error) error {
	if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
		return errors.Join(cause, fmt.Errorf("middleware: idempotency release: %w", err))
	}
	return cause
}

func replay(codec ResultCodec, cmd IdempotentCommand, rec IdempotencyRecord, fp string) (any, error) {
	if rec.Command != "" && rec.Command != cmd.Key() {
		return nil, ErrIdempotencyReuse
	}
	if rec.Fingerprint != "" && rec.Fingerprint != fp {
		return nil, ErrIdempotencyReuse
	}
	if rec.Pending {
		return nil, ErrIdempotencyInFlight
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	if rv := reflect.ValueOf(proto); rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface(), nil
	}
	return proto, nil
}

func fingerprint(codec ResultCodec, cmd commands.Command) (string, error) {
	raw, err := codec.Encode(cmd)
	if err != nil {
		return "", fmt.Errorf("middleware: fingerprint %s: %w", cmd.Key(), err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
