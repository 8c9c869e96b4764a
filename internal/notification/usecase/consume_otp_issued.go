package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/shared/mailtpl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ConsumeOTPIssuedInput struct {
	Email      string `validate:"required,email"`
	Profile    string `validate:"omitempty,oneof=customer merchant delivery"`
	Code       string `validate:"required,numeric"`
	ExpiresAt  int64  `validate:"required,gt=0"`
	TTLSeconds int64  `validate:"required,gt=0"`
}

// ConsumeOTPIssued emails a freshly issued code. Invalid or already expired
// events are dropped; only a failed render or send is reported so the broker
// redelivers.
func (s *Usecase) ConsumeOTPIssued(ctx context.Context, in ConsumeOTPIssuedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeOTPIssued")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "email", in.Email, "error", err)
		s.countDelivery(ctx, "invalid")
		return nil
	}

	now := s.clock.Now()
	expiresAt := time.Unix(in.ExpiresAt, 0)
	if !now.Before(expiresAt) {
		slog.WarnContext(ctx, "skip sending expired otp", "email", in.Email, "expires_at", expiresAt)
		s.countDelivery(ctx, "expired")
		return nil
	}

	ttl := time.Duration(in.TTLSeconds) * time.Second
	if err := s.repoMail.SendOTP(ctx, mailtpl.OTPData{
		Email:        in.Email,
		Profile:      in.Profile,
		Code:         in.Code,
		MinutesValid: mailtpl.MinutesValid(ttl),
		AppName:      s.cfg.GetString("app.name"),
		SupportEmail: s.cfg.GetString("mail.support"),
		Year:         now.Format("2006"),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to send otp email", "email", in.Email, "error", err)
		s.countDelivery(ctx, "failed")
		return err
	}

	s.countDelivery(ctx, "sent")
	return nil
}

func (s *Usecase) countDelivery(ctx context.Context, outcome string) {
	if s.deliveredCounter != nil {
		s.deliveredCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
