package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

type RecordStatusInput struct {
	Email   string `validate:"required,email,max=254"`
	Profile string `validate:"omitempty,oneof=customer merchant delivery"`
}

// RecordStatusOutput never carries the code or its hash.
type RecordStatusOutput struct {
	MaskedEmail       string
	Profile           string
	Attempts          int
	AttemptsRemaining int
	IssuedAt          time.Time
	ExpiresAt         time.Time
	Expired           bool
	BlockedUntil      *time.Time
	RetryAfter        time.Duration
}

// RecordStatus is the read-only operator view of an email's record.
func (s *Usecase) RecordStatus(ctx context.Context, in RecordStatusInput) (*RecordStatusOutput, error) {
	ctx, span := s.startSpan(ctx, "RecordStatus")
	defer span.End()

	in.Email = entity.NormalizeEmail(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.loadRecord(ctx, entity.RecordKey(in.Email, entity.Profile(in.Profile)))
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get otp record", "email", in.Email, "error", err)
		return nil, goerror.NewTransient(err)
	}
	if rec == nil {
		return nil, outcomeError(entity.Decision{Outcome: entity.OutcomeNotFound})
	}

	now := s.clock.Now()
	policy := s.policy()

	return &RecordStatusOutput{
		MaskedEmail:       instrument.MaskEmail(rec.Email),
		Profile:           string(rec.Profile),
		Attempts:          rec.Attempts,
		AttemptsRemaining: max(policy.MaxAttempts-rec.Attempts, 0),
		IssuedAt:          rec.IssuedAt,
		ExpiresAt:         rec.ExpiresAt,
		Expired:           rec.IsExpired(now),
		BlockedUntil:      rec.Clone().BlockedUntil,
		RetryAfter:        rec.BlockRemaining(now),
	}, nil
}
