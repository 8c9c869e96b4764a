package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/authz"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type mockUsecase struct {
	mock.Mock
}

func (m *mockUsecase) RequestOtp(ctx context.Context, in usecase.RequestOtpInput) (*usecase.RequestOtpOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.RequestOtpOutput)
	return out, args.Error(1)
}

func (m *mockUsecase) ValidateOtp(ctx context.Context, in usecase.ValidateOtpInput) (*usecase.ValidateOtpOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.ValidateOtpOutput)
	return out, args.Error(1)
}

func (m *mockUsecase) RecordStatus(ctx context.Context, in usecase.RecordStatusInput) (*usecase.RecordStatusOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.RecordStatusOutput)
	return out, args.Error(1)
}

func (m *mockUsecase) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func newTestServer(t *testing.T) (*router.Router, *mockUsecase, jwt.JWT) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app: {}"))
	require.NoError(t, err)

	tokens, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("k", 64)),
		Issuer:    "otpgate",
		Audiences: []string{"otpgate-admin"},
		TTL:       time.Minute,
		Clock:     clock.New(),
		UUID:      fixedID("jti"),
	})
	require.NoError(t, err)

	enforcer, err := authz.New(t.Context(), authz.Config{
		Policies: [][]string{{"operator", "otp.record", "read"}},
	}, nil)
	require.NoError(t, err)

	r := router.NewRouter(router.Config{
		Config:     cfg,
		UUID:       fixedID("cid"),
		JWT:        tokens,
		Instrument: instrument.NewNoop(),
		Enforcer:   enforcer,
		PublicEndpoints: map[string][]string{
			http.MethodPost: {"/api/v1/otp/request", "/api/v1/otp/validate"},
		},
	})

	uc := &mockUsecase{}
	RegisterHTTPEndpoint(r, uc)

	return r, uc, tokens
}

func serve(r http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHTTPEndpoint_RequestOtp(t *testing.T) {
	r, uc, _ := newTestServer(t)
	expiresAt := time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)

	uc.On("RequestOtp", mock.Anything, usecase.RequestOtpInput{Email: "alice@example.com", IdempotencyKey: "k-1"}).
		Return(&usecase.RequestOtpOutput{Email: "alice@example.com", ExpiresAt: expiresAt, TTL: 5 * time.Minute}, nil).Once()

	rec, body := serve(r, http.MethodPost, "/api/v1/otp/request", `{"email":"alice@example.com"}`,
		map[string]string{"Idempotency-Key": "k-1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTP sent to email.", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "2026-03-01T09:05:00Z", data["expires_at"])
	assert.EqualValues(t, 300, data["expires_in_seconds"])
	uc.AssertExpectations(t)
}

func TestHTTPEndpoint_RequestOtp_Blocked(t *testing.T) {
	r, uc, _ := newTestServer(t)

	blocked := goerror.NewBusinessCause(entity.ErrOTPBlocked, "You have exceeded the maximum attempts. Please wait before requesting a new OTP.", goerror.CodeTooManyRequest).
		WithRetryAfter(90*time.Second).
		WithField("retry_after_seconds", "90")
	uc.On("RequestOtp", mock.Anything, mock.Anything).Return(nil, blocked).Once()

	rec, body := serve(r, http.MethodPost, "/api/v1/otp/request", `{"email":"alice@example.com"}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Equal(t, map[string]any{"retry_after_seconds": "90"}, body["error"])
}

func TestHTTPEndpoint_RequestOtp_BadBody(t *testing.T) {
	r, uc, _ := newTestServer(t)

	rec, _ := serve(r, http.MethodPost, "/api/v1/otp/request", `{"email":"a@b.co","extra":1}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	uc.AssertNotCalled(t, "RequestOtp", mock.Anything, mock.Anything)
}

func TestHTTPEndpoint_ValidateOtp(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "ok", wantStatus: http.StatusOK, wantMsg: "OTP validated successfully."},
		{
			name:       "invalid code",
			err:        goerror.NewBusinessCause(entity.ErrOTPInvalidCode, "Invalid OTP.", goerror.CodeUnauthorized),
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Invalid OTP.",
		},
		{
			name:       "expired",
			err:        goerror.NewBusinessCause(entity.ErrOTPExpired, "OTP has expired.", goerror.CodeGone),
			wantStatus: http.StatusGone,
			wantMsg:    "OTP has expired.",
		},
		{
			name:       "too many attempts",
			err:        goerror.NewBusinessCause(entity.ErrOTPTooManyAttempts, "Too many failed attempts. Please request a new OTP later.", goerror.CodeForbidden),
			wantStatus: http.StatusForbidden,
			wantMsg:    "Too many failed attempts. Please request a new OTP later.",
		},
		{
			name:       "store unavailable",
			err:        goerror.NewTransient(context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "Service temporarily unavailable, please retry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, uc, _ := newTestServer(t)

			var out *usecase.ValidateOtpOutput
			if tt.err == nil {
				out = &usecase.ValidateOtpOutput{Email: "alice@example.com", ValidatedAt: time.Now()}
			}
			uc.On("ValidateOtp", mock.Anything, usecase.ValidateOtpInput{Email: "alice@example.com", Code: "483920"}).
				Return(out, tt.err).Once()

			rec, body := serve(r, http.MethodPost, "/api/v1/otp/validate", `{"email":"alice@example.com","code":"483920"}`, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestHTTPEndpoint_RecordStatus(t *testing.T) {
	r, uc, tokens := newTestServer(t)

	uc.On("RecordStatus", mock.Anything, usecase.RecordStatusInput{Email: "alice@example.com"}).
		Return(&usecase.RecordStatusOutput{MaskedEmail: "a****e@example.com", Attempts: 1, AttemptsRemaining: 2}, nil)

	rec, _ := serve(r, http.MethodGet, "/api/v1/otp/records/alice@example.com", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer, err := tokens.Generate("op-2", "viewer")
	require.NoError(t, err)
	rec, _ = serve(r, http.MethodGet, "/api/v1/otp/records/alice@example.com", "", map[string]string{"Authorization": "Bearer " + viewer})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	operator, err := tokens.Generate("op-1", "operator")
	require.NoError(t, err)
	rec, body := serve(r, http.MethodGet, "/api/v1/otp/records/alice@example.com", "", map[string]string{"Authorization": "Bearer " + operator})
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "a****e@example.com", data["email"])
	assert.EqualValues(t, 2, data["attempts_remaining"])
	assert.NotContains(t, data, "code_hash")

	// operator role is not granted delete in this policy set
	rec, _ = serve(r, http.MethodPost, "/api/v1/otp/records/sweep", "", map[string]string{"Authorization": "Bearer " + operator})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	uc.AssertNotCalled(t, "SweepExpired", mock.Anything)
}

func TestHTTPEndpoint_ProfilePassedThrough(t *testing.T) {
	r, uc, tokens := newTestServer(t)

	uc.On("RequestOtp", mock.Anything, usecase.RequestOtpInput{Email: "shop@example.com", Profile: "merchant"}).
		Return(&usecase.RequestOtpOutput{Email: "shop@example.com", Profile: "merchant", TTL: time.Minute}, nil).Once()
	uc.On("ValidateOtp", mock.Anything, usecase.ValidateOtpInput{Email: "shop@example.com", Profile: "merchant", Code: "123456"}).
		Return(&usecase.ValidateOtpOutput{Email: "shop@example.com"}, nil).Once()
	uc.On("RecordStatus", mock.Anything, usecase.RecordStatusInput{Email: "shop@example.com", Profile: "merchant"}).
		Return(&usecase.RecordStatusOutput{MaskedEmail: "s****p@example.com", Profile: "merchant"}, nil).Once()

	rec, _ := serve(r, http.MethodPost, "/api/v1/otp/request", `{"email":"shop@example.com","profile":"merchant"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(r, http.MethodPost, "/api/v1/otp/validate", `{"email":"shop@example.com","profile":"merchant","code":"123456"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	operator, err := tokens.Generate("op-1", "operator")
	require.NoError(t, err)
	rec, body := serve(r, http.MethodGet, "/api/v1/otp/records/shop@example.com?profile=merchant", "",
		map[string]string{"Authorization": "Bearer " + operator})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "merchant", body["data"].(map[string]any)["profile"])

	uc.AssertExpectations(t)
}
