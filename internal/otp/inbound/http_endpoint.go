package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes the OTP lifecycle over HTTP.
type HTTPEndpoint struct {
	uc uc
}

// RequestOtp issues a code for the email and sends it. A repeated call with
// the same Idempotency-Key header does not send a second code.
func (h *HTTPEndpoint) RequestOtp(r *router.Request) (any, error) {
	var req RequestOtpRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RequestOtp(r.Context(), usecase.RequestOtpInput{
		Email:          req.Email,
		Profile:        req.Profile,
		IdempotencyKey: r.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		return nil, err
	}

	out := RequestOtpResponse{Replayed: resp.Replayed}
	if !resp.Replayed {
		out.ExpiresAt = &resp.ExpiresAt
		out.ExpiresInSeconds = int64(resp.TTL.Seconds())
	}

	return out, nil
}

func (h *HTTPEndpoint) ValidateOtp(r *router.Request) (any, error) {
	var req ValidateOtpRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.ValidateOtp(r.Context(), usecase.ValidateOtpInput{
		Email:   req.Email,
		Profile: req.Profile,
		Code:    req.Code,
	})
	if err != nil {
		return nil, err
	}

	return ValidateOtpResponse{ValidatedAt: resp.ValidatedAt}, nil
}

// RecordStatus returns the operator view of an email's record. The optional
// profile query parameter selects a scoped record.
func (h *HTTPEndpoint) RecordStatus(r *router.Request) (any, error) {
	resp, err := h.uc.RecordStatus(r.Context(), usecase.RecordStatusInput{
		Email:   r.GetParam("email"),
		Profile: r.GetQuery("profile"),
	})
	if err != nil {
		return nil, err
	}

	out := RecordStatusResponse{
		Email:             resp.MaskedEmail,
		Profile:           resp.Profile,
		Attempts:          resp.Attempts,
		AttemptsRemaining: resp.AttemptsRemaining,
		IssuedAt:          resp.IssuedAt,
		ExpiresAt:         resp.ExpiresAt,
		Expired:           resp.Expired,
		BlockedUntil:      resp.BlockedUntil,
	}
	if resp.RetryAfter > 0 {
		out.RetryAfterSeconds = int64(resp.RetryAfter.Seconds())
	}

	return out, nil
}

func (h *HTTPEndpoint) Sweep(r *router.Request) (any, error) {
	removed, err := h.uc.SweepExpired(r.Context())
	if err != nil {
		return nil, err
	}

	return SweepResponse{Removed: removed}, nil
}
