package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"go.opentelemetry.io/otel/attribute"
)

type RequestOtpInput struct {
	Email string `validate:"required,email,max=254"`
	// Profile scopes the code so one email can hold a separate code per
	// account kind. Empty means unscoped.
	Profile string `validate:"omitempty,oneof=customer merchant delivery"`
	// IdempotencyKey makes a retried request replay the first success
	// instead of issuing and sending another code.
	IdempotencyKey string `validate:"omitempty,max=128,printascii"`
}

type RequestOtpOutput struct {
	Email     string
	Profile   string
	ExpiresAt time.Time
	TTL       time.Duration
	// Replayed is set when an earlier request with the same idempotency key
	// already issued the code.
	Replayed bool
}

func (s *Usecase) RequestOtp(ctx context.Context, in RequestOtpInput) (*RequestOtpOutput, error) {
	ctx, span := s.startSpan(ctx, "RequestOtp")
	defer span.End()

	in.Email = entity.NormalizeEmail(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	owner := entity.Owner{Email: in.Email, Profile: entity.Profile(in.Profile)}
	if in.IdempotencyKey == "" || s.idemp == nil {
		return s.requestOtp(ctx, owner)
	}

	var out *RequestOtpOutput
	err := s.idemp.Exec(ctx, "otp:request:"+owner.Key()+":"+in.IdempotencyKey,
		func(ctx context.Context) error {
			var err error
			out, err = s.requestOtp(ctx, owner)
			return err
		},
		idempotency.WithLockDuration(s.durationOr("modules.otp.notify_timeout_ms", defaultNotifyTimeout)+time.Minute),
		idempotency.WithStateTTL(s.policy().TTL),
	)

	var gerr *goerror.Error
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		slog.InfoContext(ctx, "replayed otp request by idempotency key", "email", in.Email)
		return &RequestOtpOutput{Email: in.Email, Profile: in.Profile, Replayed: true}, nil
	case errors.Is(err, idempotency.ErrAlreadyInProgress):
		return nil, goerror.NewBusiness("A request with this idempotency key is still in progress", goerror.CodeConflict)
	case errors.As(err, &gerr):
		return nil, err
	default:
		return nil, s.transient(ctx, "failed to track idempotency key", in.Email, err)
	}
}

func (s *Usecase) requestOtp(ctx context.Context, owner entity.Owner) (*RequestOtpOutput, error) {
	email := owner.Email
	policy := s.policy()

	code, err := s.codes.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	codeHash, err := s.hash.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	var (
		decision entity.Decision
		issued   entity.Record
	)
	err = s.withCAS(ctx, "request", func(ctx context.Context) error {
		current, err := s.loadRecord(ctx, owner.Key())
		if err != nil {
			return err
		}

		decision = policy.Issue(current, owner, string(codeHash), s.clock.Now())
		if decision.Action != entity.ActionSave {
			return nil
		}

		rec := decision.Record
		if rec.ID == 0 {
			rec.ID = s.uid.Generate()
		}
		issued, err = s.saveRecord(ctx, rec, decision.Record.Version)
		return err
	})
	if err != nil {
		return nil, s.transient(ctx, "failed to persist otp record", email, err)
	}

	s.count(ctx, s.requestCounter, 1, attribute.String("outcome", decision.Outcome.String()))

	if decision.Outcome != entity.OutcomeOK {
		slog.WarnContext(ctx, "otp request rejected", "email", email, "profile", owner.Profile, "outcome", decision.Outcome.String(), "retry_after", decision.RetryAfter.String())
		return nil, outcomeError(decision)
	}

	nctx, cancel := context.WithTimeout(ctx, s.durationOr("modules.otp.notify_timeout_ms", defaultNotifyTimeout))
	defer cancel()

	if err := s.repoNotifier.SendOTP(nctx, entity.Delivery{
		Email:     email,
		Profile:   owner.Profile,
		Code:      code,
		ExpiresAt: issued.ExpiresAt,
		TTL:       policy.TTL,
	}); err != nil {
		// the stored code stays valid; the caller may request again
		return nil, s.transient(ctx, "failed to send otp notification", email, err)
	}

	slog.InfoContext(ctx, "otp issued", "email", email, "profile", owner.Profile, "expires_at", issued.ExpiresAt)

	return &RequestOtpOutput{
		Email:     email,
		Profile:   string(owner.Profile),
		ExpiresAt: issued.ExpiresAt,
		TTL:       policy.TTL,
	}, nil
}
