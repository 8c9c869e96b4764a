package usecase

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/shandysiswandi/otpgate/internal/shared/mailtpl"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type repoMail interface {
	SendOTP(ctx context.Context, data mailtpl.OTPData) error
}

type Usecase struct {
	repoMail  repoMail
	cfg       config.Config
	clock     clock.Clocker
	validator validator.Validator
	ins       instrument.Instrumentation

	deliveredCounter metric.Int64Counter
}

type Dependency struct {
	RepoMail   repoMail
	Config     config.Config
	Clock      clock.Clocker
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	s := &Usecase{
		repoMail:  dep.RepoMail,
		cfg:       dep.Config,
		clock:     dep.Clock,
		validator: dep.Validator,
		ins:       dep.Instrument,
	}

	c, err := s.ins.Meter("notification.usecase").Int64Counter("notification.otp.emails",
		metric.WithDescription("Verification code emails by outcome"))
	if err == nil {
		s.deliveredCounter = c
	}

	return s
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}
