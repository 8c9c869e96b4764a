package inbound

import "time"

type RequestOtpRequest struct {
	Email   string `json:"email"`
	Profile string `json:"profile,omitempty"`
}

type RequestOtpResponse struct {
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ExpiresInSeconds int64      `json:"expires_in_seconds,omitempty"`
	Replayed         bool       `json:"replayed,omitempty"`
}

func (RequestOtpResponse) Message() string {
	return "OTP sent to email."
}

type ValidateOtpRequest struct {
	Email   string `json:"email"`
	Profile string `json:"profile,omitempty"`
	Code    string `json:"code"`
}

type ValidateOtpResponse struct {
	ValidatedAt time.Time `json:"validated_at"`
}

func (ValidateOtpResponse) Message() string {
	return "OTP validated successfully."
}

type RecordStatusResponse struct {
	Email             string     `json:"email"`
	Profile           string     `json:"profile,omitempty"`
	Attempts          int        `json:"attempts"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	IssuedAt          time.Time  `json:"issued_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	Expired           bool       `json:"expired"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
	RetryAfterSeconds int64      `json:"retry_after_seconds,omitempty"`
}

type SweepResponse struct {
	Removed int64 `json:"removed"`
}

func (SweepResponse) Message() string {
	return "Expired OTP records removed."
}
