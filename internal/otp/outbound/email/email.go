package email

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/shared/mailtpl"
	"go.opentelemetry.io/otel/codes"
)

// Mail sends the code straight through the SMTP client.
type Mail struct {
	client mail.Mail
	cfg    config.Config
	clock  clock.Clocker
	ins    instrument.Instrumentation
}

func New(client mail.Mail, cfg config.Config, clk clock.Clocker, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, cfg: cfg, clock: clk, ins: ins}
}

func (m *Mail) SendOTP(ctx context.Context, d entity.Delivery) error {
	ctx, span := m.ins.Tracer("otp.outbound.email").Start(ctx, "SendOTP")
	defer span.End()

	msg, err := mailtpl.OTP(mailtpl.OTPData{
		Email:        d.Email,
		Profile:      string(d.Profile),
		Code:         d.Code,
		MinutesValid: mailtpl.MinutesValid(d.TTL),
		AppName:      m.cfg.GetString("app.name"),
		SupportEmail: m.cfg.GetString("mail.support"),
		Year:         m.clock.Now().Format("2006"),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := m.client.Send(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
