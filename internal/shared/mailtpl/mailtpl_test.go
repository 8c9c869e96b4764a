package mailtpl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTP(t *testing.T) {
	msg, err := OTP(OTPData{
		Email:        "alice@example.com",
		Code:         "483920",
		MinutesValid: 5,
		AppName:      "otpgate",
		SupportEmail: "support@otpgate.dev",
		Year:         "2026",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@example.com"}, msg.To)
	assert.Equal(t, "Your verification code", msg.Subject)
	assert.Contains(t, msg.TextBody, "Your code is 483920. It is valid for 5 minutes.")
	assert.Contains(t, msg.HTMLBody, ">483920<")
	assert.Contains(t, msg.HTMLBody, "&copy; 2026 otpgate")
}

func TestOTP_SingleMinute(t *testing.T) {
	msg, err := OTP(OTPData{Email: "a@b.co", Code: "000001", MinutesValid: 1})
	require.NoError(t, err)

	assert.Contains(t, msg.TextBody, "valid for 1 minute.")
}

func TestOTP_EscapesHTML(t *testing.T) {
	msg, err := OTP(OTPData{Email: "a@b.co", Code: "1", MinutesValid: 2, AppName: "<b>x</b>"})
	require.NoError(t, err)

	assert.NotContains(t, msg.HTMLBody, "<b>x</b>")
	assert.Contains(t, msg.HTMLBody, "&lt;b&gt;x&lt;/b&gt;")
}

func TestOTP_ProfileCopy(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		subject string
		intro   string
	}{
		{name: "unscoped", profile: "", subject: "Your verification code", intro: "Use the code below to continue."},
		{name: "customer", profile: "customer", subject: "Your verification code", intro: "sign in to your account."},
		{name: "merchant", profile: "merchant", subject: "Your merchant verification code", intro: "merchant dashboard."},
		{name: "delivery", profile: "delivery", subject: "Your delivery partner verification code", intro: "delivery partner app."},
		{name: "unknown falls back", profile: "courier", subject: "Your verification code", intro: "Use the code below to continue."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := OTP(OTPData{Email: "a@b.co", Profile: tt.profile, Code: "123456", MinutesValid: 5})
			require.NoError(t, err)

			assert.Equal(t, tt.subject, msg.Subject)
			assert.Equal(t, tt.subject, Subject(tt.profile))
			assert.Contains(t, msg.TextBody, tt.intro)
			assert.Contains(t, msg.HTMLBody, tt.intro)
		})
	}
}

func TestMinutesValid(t *testing.T) {
	assert.Equal(t, 5, MinutesValid(5*time.Minute))
	assert.Equal(t, 2, MinutesValid(61*time.Second))
	assert.Equal(t, 1, MinutesValid(10*time.Second))
	assert.Equal(t, 1, MinutesValid(0))
}
