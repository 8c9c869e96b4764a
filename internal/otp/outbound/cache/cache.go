// Package cache stores OTP records in redis. Each record is one JSON value
// whose key outlives both the code and any lockout by a grace period, so a
// late validation still sees the record as expired. Redis evicts what the
// sweeper and lazy deletion leave behind.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyPrefix = "otp:record:"
	scanCount = 200

	DefaultGrace = time.Hour
)

type Cache struct {
	client redis.UniversalClient
	ins    instrument.Instrumentation
	grace  time.Duration
}

// New returns a redis store. grace is how long a key outlives the code and
// its lockout; non-positive values use DefaultGrace.
func New(client redis.UniversalClient, ins instrument.Instrumentation, grace time.Duration) *Cache {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Cache{client: client, ins: ins, grace: grace}
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("otp.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *Cache) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return goerror.ErrNotFound
	case errors.Is(err, redis.TxFailedErr):
		return goerror.ErrConflict
	default:
		return err
	}
}

type record struct {
	ID           int64          `json:"id"`
	Email        string         `json:"email"`
	Profile      entity.Profile `json:"profile,omitempty"`
	CodeHash     string         `json:"code_hash"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Attempts     int            `json:"attempts"`
	BlockedUntil *time.Time     `json:"blocked_until,omitempty"`
	IssuedAt     time.Time      `json:"issued_at"`
	Version      int64          `json:"version"`
}

func fromEntity(rec entity.Record) record {
	return record(rec)
}

func (r record) toEntity() entity.Record {
	return entity.Record(r)
}

// evictAt is when the key may disappear: grace after the code expired and
// any lockout ended.
func evictAt(rec entity.Record, grace time.Duration) time.Time {
	at := rec.ExpiresAt
	if rec.BlockedUntil != nil && rec.BlockedUntil.After(at) {
		at = *rec.BlockedUntil
	}
	return at.Add(grace)
}

func read(ctx context.Context, cmd redis.Cmdable, key string) (*entity.Record, error) {
	raw, err := cmd.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	rec := r.toEntity()
	return &rec, nil
}

func (c *Cache) GetRecord(ctx context.Context, key string) (_ *entity.Record, err error) {
	ctx, span := c.startSpan(ctx, "GetRecord")
	defer func() { c.endSpan(span, err) }()

	rec, err := read(ctx, c.client, keyPrefix+key)
	if err != nil {
		err = c.mapError(err)
		return nil, err
	}
	return rec, nil
}

func (c *Cache) SaveRecord(ctx context.Context, rec entity.Record, expectedVersion int64) (_ entity.Record, err error) {
	ctx, span := c.startSpan(ctx, "SaveRecord")
	defer func() { c.endSpan(span, err) }()

	key := keyPrefix + rec.Key()
	rec.Version = expectedVersion + 1

	raw, err := json.Marshal(fromEntity(rec))
	if err != nil {
		return entity.Record{}, err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := read(ctx, tx, key)
		switch {
		case errors.Is(err, redis.Nil):
			if expectedVersion != 0 {
				return goerror.ErrConflict
			}
		case err != nil:
			return err
		case cur.Version != expectedVersion:
			return goerror.ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.PExpireAt(ctx, key, evictAt(rec, c.grace))
			return nil
		})
		return err
	}, key)
	if err != nil {
		err = c.mapError(err)
		return entity.Record{}, err
	}

	return rec, nil
}

func (c *Cache) DeleteRecord(ctx context.Context, key string, expectedVersion int64) (err error) {
	ctx, span := c.startSpan(ctx, "DeleteRecord")
	defer func() { c.endSpan(span, err) }()

	err = c.deleteIf(ctx, keyPrefix+key, func(cur *entity.Record) bool {
		return cur.Version == expectedVersion
	})
	if errors.Is(err, goerror.ErrNotFound) {
		err = goerror.ErrConflict
	}
	return err
}

// deleteIf removes key when ok reports true for its current value. It
// returns goerror.ErrConflict when the value does not qualify or changes
// while being checked.
func (c *Cache) deleteIf(ctx context.Context, key string, ok func(cur *entity.Record) bool) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := read(ctx, tx, key)
		if err != nil {
			return err
		}
		if !ok(cur) {
			return goerror.ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	return c.mapError(err)
}

// DeleteExpired scans record keys and removes the ones that are expired and
// not locked. Keys changed concurrently are left for the next run.
func (c *Cache) DeleteExpired(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := c.startSpan(ctx, "DeleteExpired")
	defer func() { c.endSpan(span, err) }()

	var removed int64
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		derr := c.deleteIf(ctx, iter.Val(), func(cur *entity.Record) bool {
			return cur.IsExpired(now) && !cur.IsBlocked(now)
		})
		switch {
		case derr == nil:
			removed++
		case errors.Is(derr, goerror.ErrConflict), errors.Is(derr, goerror.ErrNotFound):
		default:
			err = derr
			return removed, err
		}
	}
	if err = iter.Err(); err != nil {
		return removed, err
	}

	return removed, nil
}
