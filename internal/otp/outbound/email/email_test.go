package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

type fakeMail struct {
	sent []mail.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMail) Close() error { return nil }

func TestMail_SendOTP(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app: {name: otpgate}\nmail: {support: help@otpgate.dev}"))
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	client := &fakeMail{}
	m := New(client, cfg, clock.NewManual(now), instrument.NewNoop())

	err = m.SendOTP(t.Context(), entity.Delivery{
		Email:     "alice@example.com",
		Code:      "483920",
		ExpiresAt: now.Add(5 * time.Minute),
		TTL:       5 * time.Minute,
	})
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	msg := client.sent[0]
	assert.Equal(t, []string{"alice@example.com"}, msg.To)
	assert.Equal(t, "Your verification code", msg.Subject)
	assert.Contains(t, msg.TextBody, "483920")
	assert.Contains(t, msg.TextBody, "5 minutes")
	assert.Contains(t, msg.HTMLBody, "help@otpgate.dev")
}

func TestMail_SendOTP_Failure(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app: {}"))
	require.NoError(t, err)

	errSMTP := errors.New("421 service not available")
	m := New(&fakeMail{err: errSMTP}, cfg, clock.New(), instrument.NewNoop())

	err = m.SendOTP(t.Context(), entity.Delivery{Email: "a@b.co", Code: "1", TTL: time.Minute})
	assert.ErrorIs(t, err, errSMTP)
}

func TestMail_SendOTP_ProfileSubject(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app: {name: otpgate}"))
	require.NoError(t, err)

	client := &fakeMail{}
	m := New(client, cfg, clock.New(), instrument.NewNoop())

	err = m.SendOTP(t.Context(), entity.Delivery{
		Email:   "shop@example.com",
		Profile: entity.ProfileMerchant,
		Code:    "102938",
		TTL:     90 * time.Second,
	})
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	assert.Equal(t, "Your merchant verification code", client.sent[0].Subject)
	assert.Contains(t, client.sent[0].TextBody, "2 minutes")
}
