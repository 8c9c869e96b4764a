package email

import (
	"context"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/shared/mailtpl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mail delivers rendered verification emails for the broker consumer.
type Mail struct {
	client mail.Mail
	ins    instrument.Instrumentation
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, ins: ins}
}

func (m *Mail) SendOTP(ctx context.Context, data mailtpl.OTPData) error {
	_, domain, _ := strings.Cut(data.Email, "@")
	ctx, span := m.ins.Tracer("notification.outbound.email").Start(ctx, "SendOTP",
		trace.WithAttributes(attribute.String("email.domain", domain)))
	defer span.End()

	msg, err := mailtpl.OTP(data)
	if err != nil {
		return m.endSpan(span, err)
	}

	return m.endSpan(span, m.client.Send(ctx, msg))
}

func (m *Mail) endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
