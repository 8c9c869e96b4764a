package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

// ensureCorrelationID prefers the header, then the payload copy, then a new id.
func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header, fallback string) context.Context {
	if cID, ok := messaging.HeaderValue(headers, keyOfCorrelationID); ok && cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	if fallback != "" {
		return instrument.SetCorrelationID(ctx, fallback)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) OTPIssuedNotification(ctx context.Context, msg messaging.Message) error {
	body := msg.Body()

	var payload event.OTPIssuedMessage
	parseErr := json.Unmarshal(body, &payload)

	ctx = h.ensureCorrelationID(ctx, msg.Headers(), payload.CorrelationID)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPIssuedNotification")
	defer span.End()

	if parseErr != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp issued notification", "msg_id", msg.ID(), "error", parseErr)
		return nil
	}

	slog.InfoContext(ctx, "consume: otp issued notification", "msg_id", msg.ID(), "email", payload.Email)

	if err := h.uc.ConsumeOTPIssued(ctx, usecase.ConsumeOTPIssuedInput{
		Email:      payload.Email,
		Profile:    payload.Profile,
		Code:       payload.Code,
		ExpiresAt:  payload.ExpiresAt,
		TTLSeconds: payload.TTLSeconds,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume otp issued", "msg_id", msg.ID(), "email", payload.Email, "error", err)
		return err
	}

	return nil
}
