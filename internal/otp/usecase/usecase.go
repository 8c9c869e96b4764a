package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStoreTimeout  = 2 * time.Second
	defaultNotifyTimeout = 10 * time.Second
	defaultCASRetries    = 5
	defaultCASBaseDelay  = 5 * time.Millisecond
)

// repoStore persists one record per key (see entity.Owner.Key) with
// optimistic concurrency. expectedVersion 0 on SaveRecord means "only if
// absent". A version miss is reported as goerror.ErrConflict and an absent
// record as goerror.ErrNotFound.
type repoStore interface {
	GetRecord(ctx context.Context, key string) (*entity.Record, error)
	SaveRecord(ctx context.Context, rec entity.Record, expectedVersion int64) (entity.Record, error)
	DeleteRecord(ctx context.Context, key string, expectedVersion int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type repoNotifier interface {
	SendOTP(ctx context.Context, d entity.Delivery) error
}

type codeGenerator interface {
	Generate() (string, error)
	Length() int
}

type Usecase struct {
	repoStore    repoStore
	repoNotifier repoNotifier
	idemp        idempotency.Idempotency
	codes        codeGenerator
	hash         hash.Hash
	validator    validator.Validator
	cfg          config.Config
	uid          uid.NumberID
	clock        clock.Clocker
	ins          instrument.Instrumentation

	requestCounter    metric.Int64Counter
	validationCounter metric.Int64Counter
	conflictCounter   metric.Int64Counter
	sweptCounter      metric.Int64Counter
}

type Dependency struct {
	RepoStore    repoStore
	RepoNotifier repoNotifier
	// Idempotency is optional; without it the Idempotency-Key header is ignored.
	Idempotency idempotency.Idempotency
	Codes       codeGenerator
	Hash        hash.Hash
	Validator   validator.Validator
	Config      config.Config
	UID         uid.NumberID
	Clock       clock.Clocker
	Instrument  instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	s := &Usecase{
		repoStore:    dep.RepoStore,
		repoNotifier: dep.RepoNotifier,
		idemp:        dep.Idempotency,
		codes:        dep.Codes,
		hash:         dep.Hash,
		validator:    dep.Validator,
		cfg:          dep.Config,
		uid:          dep.UID,
		clock:        dep.Clock,
		ins:          dep.Instrument,
	}

	meter := s.ins.Meter("otp.usecase")
	s.requestCounter = newCounter(meter, "otp.requests", "OTP requests by outcome")
	s.validationCounter = newCounter(meter, "otp.validations", "OTP validations by outcome")
	s.conflictCounter = newCounter(meter, "otp.cas.conflicts", "Optimistic write conflicts on OTP records")
	s.sweptCounter = newCounter(meter, "otp.sweeper.removed", "Expired OTP records removed by the sweeper")

	return s
}

func newCounter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Error("failed to create counter", "name", name, "error", err)
		return nil
	}
	return c
}

func (s *Usecase) count(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c != nil && n > 0 {
		c.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

// policy reads the lifecycle rules on every call so a config reload applies
// to the next request.
func (s *Usecase) policy() entity.Policy {
	p := entity.DefaultPolicy()
	if v := s.cfg.GetSecond("modules.otp.ttl_seconds"); v > 0 {
		p.TTL = v
	}
	if v := s.cfg.GetSecond("modules.otp.block_seconds"); v > 0 {
		p.BlockDuration = v
	}
	if v := s.cfg.GetInt("modules.otp.max_attempts"); v > 0 {
		p.MaxAttempts = v
	}
	if s.cfg.GetString("modules.otp.consume_on_success") != "" {
		p.ConsumeOnSuccess = s.cfg.GetBool("modules.otp.consume_on_success")
	}
	return p
}

func (s *Usecase) durationOr(key string, def time.Duration) time.Duration {
	if v := s.cfg.GetMillisecond(key); v > 0 {
		return v
	}
	return def
}

// loadRecord returns nil without error when no record exists.
func (s *Usecase) loadRecord(ctx context.Context, key string) (*entity.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.durationOr("modules.otp.store_timeout_ms", defaultStoreTimeout))
	defer cancel()

	rec, err := s.repoStore.GetRecord(ctx, key)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *Usecase) saveRecord(ctx context.Context, rec entity.Record, expectedVersion int64) (entity.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.durationOr("modules.otp.store_timeout_ms", defaultStoreTimeout))
	defer cancel()

	return s.repoStore.SaveRecord(ctx, rec, expectedVersion)
}

func (s *Usecase) deleteRecord(ctx context.Context, key string, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.durationOr("modules.otp.store_timeout_ms", defaultStoreTimeout))
	defer cancel()

	return s.repoStore.DeleteRecord(ctx, key, expectedVersion)
}

// withCAS runs step (read, decide, write) and repeats it from a fresh read
// while the write loses a version race.
func (s *Usecase) withCAS(ctx context.Context, op string, step func(ctx context.Context) error) error {
	maxRetries := s.cfg.GetInt("modules.otp.cas_max_retries")
	if maxRetries <= 0 {
		maxRetries = defaultCASRetries
	}

	b := retry.NewExponential(s.durationOr("modules.otp.cas_base_delay_ms", defaultCASBaseDelay))
	b = retry.WithJitterPercent(50, b)
	b = retry.WithCappedDuration(250*time.Millisecond, b)
	b = retry.WithMaxRetries(uint64(maxRetries), b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := step(ctx)
		if errors.Is(err, goerror.ErrConflict) {
			s.count(ctx, s.conflictCounter, 1, attribute.String("operation", op))
			return retry.RetryableError(err)
		}
		return err
	})
}

// transient logs a store or notifier failure and wraps it for the caller.
func (s *Usecase) transient(ctx context.Context, msg, email string, err error) error {
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "gave up after repeated concurrent modifications", "email", email, "error", err)
	} else {
		slog.ErrorContext(ctx, msg, "email", email, "error", err)
	}
	return goerror.NewTransient(err)
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10)
}

// outcomeError converts a rejecting decision into the error returned to callers.
func outcomeError(d entity.Decision) error {
	cause := d.Outcome.Err()

	switch d.Outcome {
	case entity.OutcomeBlocked:
		return goerror.NewBusinessCause(cause,
			"You have exceeded the maximum attempts. Please wait before requesting a new OTP.",
			goerror.CodeTooManyRequest).
			WithRetryAfter(d.RetryAfter).
			WithField("retry_after_seconds", retryAfterSeconds(d.RetryAfter))

	case entity.OutcomeExpired:
		return goerror.NewBusinessCause(cause, "OTP has expired.", goerror.CodeGone)

	case entity.OutcomeTooManyAttempts:
		gerr := goerror.NewBusinessCause(cause, "Too many failed attempts. Please request a new OTP later.", goerror.CodeForbidden)
		if d.RetryAfter > 0 {
			gerr = gerr.WithRetryAfter(d.RetryAfter).WithField("retry_after_seconds", retryAfterSeconds(d.RetryAfter))
		}
		return gerr

	case entity.OutcomeInvalidCode:
		return goerror.NewBusinessCause(cause, "Invalid OTP.", goerror.CodeUnauthorized).
			WithField("attempts_remaining", strconv.Itoa(d.AttemptsRemaining))

	case entity.OutcomeNotFound:
		return goerror.NewBusinessCause(cause, "No OTP has been requested for this email.", goerror.CodeNotFound)

	default:
		return nil
	}
}
