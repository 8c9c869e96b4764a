package usecase

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
)

type ValidateOtpInput struct {
	Email   string `validate:"required,email,max=254"`
	Profile string `validate:"omitempty,oneof=customer merchant delivery"`
	Code    string `validate:"required,otpcode"`
}

type ValidateOtpOutput struct {
	Email       string
	ValidatedAt time.Time
}

func (s *Usecase) ValidateOtp(ctx context.Context, in ValidateOtpInput) (*ValidateOtpOutput, error) {
	ctx, span := s.startSpan(ctx, "ValidateOtp")
	defer span.End()

	in.Email = entity.NormalizeEmail(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	if n := s.codes.Length(); len(in.Code) != n {
		return nil, goerror.NewInvalidInput(nil, "code", "code must be "+strconv.Itoa(n)+" digits")
	}

	key := entity.RecordKey(in.Email, entity.Profile(in.Profile))
	policy := s.policy()
	matches := func(codeHash string) bool { return s.hash.Verify(codeHash, in.Code) }

	var (
		decision entity.Decision
		now      time.Time
	)
	err := s.withCAS(ctx, "validate", func(ctx context.Context) error {
		current, err := s.loadRecord(ctx, key)
		if err != nil {
			return err
		}

		now = s.clock.Now()
		decision = policy.Validate(current, matches, now)

		switch decision.Action {
		case entity.ActionSave:
			_, err = s.saveRecord(ctx, decision.Record, decision.Record.Version)
		case entity.ActionDelete:
			err = s.deleteRecord(ctx, key, decision.Record.Version)
		}
		return err
	})
	if err != nil {
		return nil, s.transient(ctx, "failed to update otp record", in.Email, err)
	}

	s.count(ctx, s.validationCounter, 1, attribute.String("outcome", decision.Outcome.String()))

	if decision.Outcome != entity.OutcomeOK {
		slog.WarnContext(ctx, "otp validation rejected",
			"email", in.Email,
			"profile", in.Profile,
			"outcome", decision.Outcome.String(),
			"attempts", decision.Record.Attempts,
		)
		return nil, outcomeError(decision)
	}

	slog.InfoContext(ctx, "otp validated", "email", in.Email, "consumed", decision.Action == entity.ActionDelete)

	return &ValidateOtpOutput{Email: in.Email, ValidatedAt: now}, nil
}
