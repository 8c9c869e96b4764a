//go:build e2e

package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

// wrongCode is almost never the issued one; a collision only shortens a run.
const wrongCode = "000000"

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

type requestData struct {
	ExpiresAt        *time.Time `json:"expires_at"`
	ExpiresInSeconds int64      `json:"expires_in_seconds"`
}

func requestOtp(t *testing.T, email string) requestData {
	t.Helper()

	status, _, body := doJSON(t, http.MethodPost, "/api/v1/otp/request", map[string]string{"email": email}, "")
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("request otp failed: status=%d message=%q", status, errEnv.Message)
	}

	var data requestData
	decodeSuccess(t, body, &data)

	return data
}

func validateOtp(t *testing.T, email, code string) (int, http.Header, errorEnvelope) {
	t.Helper()

	status, header, body := doJSON(t, http.MethodPost, "/api/v1/otp/validate", map[string]string{"email": email, "code": code}, "")
	if status == http.StatusOK {
		return status, header, errorEnvelope{}
	}

	return status, header, decodeError(t, body)
}
