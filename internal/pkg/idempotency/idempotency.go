// Package idempotency guards a side-effecting operation behind a caller
// supplied key so that a retried request does not repeat it.
//
// The state lives in redis: SET NX claims the key as in progress, a
// successful run marks it completed for a while, and a failed run releases
// the key so the caller may try again.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrAlreadyInProgress means another caller holds the key right now.
	ErrAlreadyInProgress = errors.New("operation already in progress")
	// ErrAlreadyCompleted means the operation finished earlier under the same key.
	ErrAlreadyCompleted = errors.New("operation already completed")
	// ErrInvalidState means the stored value is not a known state.
	ErrInvalidState = errors.New("invalid idempotency state")
)

// State is the lifecycle of a key.
type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

func (s State) String() string {
	return string(s)
}

// Idempotency is implemented by StateTracker.
type Idempotency interface {
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

// StateTracker stores key state in redis.
type StateTracker struct {
	client redis.UniversalClient
	prefix string
}

// New returns a StateTracker that prefixes every key with "idempotency:".
func New(client redis.UniversalClient) *StateTracker {
	return &StateTracker{client: client, prefix: "idempotency:"}
}

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = 10 * time.Minute
)

// Option tunes Exec.
type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// WithLockDuration bounds how long an in-progress claim survives a crashed caller.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) {
		if d > 0 {
			o.lockDuration = d
		}
	}
}

// WithStateTTL sets how long a completed key is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) {
		if d > 0 {
			o.stateTTL = d
		}
	}
}

// Acquire claims key. StateNone means the caller now owns it; any other state
// describes the existing owner.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	fk := s.prefix + key

	for range 2 {
		acquired, err := s.client.SetNX(ctx, fk, StateInProgress.String(), lockDuration).Result()
		if err != nil {
			return "", err
		}
		if acquired {
			return StateNone, nil
		}

		current, err := s.client.Get(ctx, fk).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return "", err
		}

		switch State(current) {
		case StateInProgress, StateCompleted:
			return State(current), nil
		default:
			return "", ErrInvalidState
		}
	}

	return "", ErrInvalidState
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateCompleted.String(), ttl).Err()
}

func (s *StateTracker) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Exec runs fn at most once per key. It returns ErrAlreadyInProgress or
// ErrAlreadyCompleted without calling fn when the key is taken. When fn fails
// the key is released and fn's error is returned. Once fn succeeds Exec
// reports success even if the completed state cannot be stored; the key then
// stays in progress until its lock runs out.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	eo := &execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(eo)
	}

	state, err := s.Acquire(ctx, key, eo.lockDuration)
	if err != nil {
		return err
	}

	switch state {
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	}

	if err := fn(ctx); err != nil {
		// the caller's context may already be done; release regardless
		if relErr := s.Release(context.WithoutCancel(ctx), key); relErr != nil {
			return errors.Join(err, relErr)
		}
		return err
	}

	if err := s.MarkCompleted(context.WithoutCancel(ctx), key, eo.stateTTL); err != nil {
		slog.WarnContext(ctx, "failed to mark idempotency key completed", "key", key, "error", err)
	}

	return nil
}
