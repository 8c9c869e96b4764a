package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

// Messaging hands the code to the notification consumer through the broker.
type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) SendOTP(ctx context.Context, d entity.Delivery) error {
	ctx, span := m.ins.Tracer("otp.outbound.mq").Start(ctx, "SendOTP")
	defer span.End()

	cID := instrument.GetCorrelationID(ctx)
	body, err := json.Marshal(event.OTPIssuedMessage{
		Email:         d.Email,
		Profile:       string(d.Profile),
		Code:          d.Code,
		ExpiresAt:     d.ExpiresAt.Unix(),
		TTLSeconds:    int64(d.TTL.Seconds()),
		CorrelationID: cID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if _, err := m.client.Publish(ctx, event.OTPIssuedDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(d.Email),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
