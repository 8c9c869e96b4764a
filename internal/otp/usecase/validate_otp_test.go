package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

func issue(t *testing.T, f *fixture, email string) {
	t.Helper()
	f.expectSend()
	_, err := f.uc.RequestOtp(t.Context(), RequestOtpInput{Email: email})
	require.NoError(t, err)
}

func TestUsecase_ValidateOtp(t *testing.T) {
	t.Run("correct code is consumed by default", func(t *testing.T) {
		f := newFixture(t, "", nil)
		issue(t, f, "alice@example.com")

		out, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "ALICE@example.com", Code: "483920"})
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", out.Email)
		assert.Equal(t, start, out.ValidatedAt)
		assert.Nil(t, f.record(t, "alice@example.com"))

		_, err = f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "alice@example.com", Code: "483920"})
		requireCode(t, err, goerror.CodeNotFound)
		assert.ErrorIs(t, err, entity.ErrOTPNotFound)
	})

	t.Run("code stays valid until expiry when not consumed", func(t *testing.T) {
		f := newFixture(t, "    consume_on_success: false\n", nil)
		issue(t, f, "bob@example.com")

		_, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "bob@example.com", Code: "483920"})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		_, err = f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "bob@example.com", Code: "483920"})
		require.NoError(t, err)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newFixture(t, "", nil)

		_, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "nobody@example.com", Code: "123456"})
		requireCode(t, err, goerror.CodeNotFound)
	})

	t.Run("wrong codes lock the email", func(t *testing.T) {
		f := newFixture(t, "", nil)
		issue(t, f, "carol@example.com")

		for i, remaining := range []string{"2", "1", "0"} {
			_, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "carol@example.com", Code: "000000"})
			gerr := requireCode(t, err, goerror.CodeUnauthorized)
			assert.ErrorIs(t, err, entity.ErrOTPInvalidCode)
			assert.Equal(t, remaining, gerr.Fields()["attempts_remaining"])

			rec := f.record(t, "carol@example.com")
			assert.Equal(t, i+1, rec.Attempts)
		}

		rec := f.record(t, "carol@example.com")
		require.NotNil(t, rec.BlockedUntil)
		assert.Equal(t, start.Add(15*time.Minute), *rec.BlockedUntil)

		// even the right code is refused once the limit is hit
		_, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "carol@example.com", Code: "483920"})
		gerr := requireCode(t, err, goerror.CodeForbidden)
		assert.ErrorIs(t, err, entity.ErrOTPTooManyAttempts)
		assert.Equal(t, 15*time.Minute, gerr.RetryAfter())
		assert.Equal(t, 3, f.record(t, "carol@example.com").Attempts)
	})

	t.Run("expired record is reported then removed", func(t *testing.T) {
		f := newFixture(t, "", nil)
		issue(t, f, "dave@example.com")

		f.clock.Advance(5 * time.Minute)
		_, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "dave@example.com", Code: "483920"})
		requireCode(t, err, goerror.CodeGone)
		assert.ErrorIs(t, err, entity.ErrOTPExpired)
		assert.Nil(t, f.record(t, "dave@example.com"))

		_, err = f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "dave@example.com", Code: "483920"})
		requireCode(t, err, goerror.CodeNotFound)
	})

	t.Run("expired record keeps an active lockout", func(t *testing.T) {
		f := newFixture(t, "", nil)
		issue(t, f, "erin@example.com")
		for range 3 {
			_, _ = f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "erin@example.com", Code: "000000"})
		}

		f.clock.Advance(6 * time.Minute)
		_, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "erin@example.com", Code: "483920"})
		requireCode(t, err, goerror.CodeGone)
		require.NotNil(t, f.record(t, "erin@example.com"))

		_, err = f.uc.RequestOtp(t.Context(), RequestOtpInput{Email: "erin@example.com"})
		requireCode(t, err, goerror.CodeTooManyRequest)
	})

	t.Run("worked example", func(t *testing.T) {
		f := newFixture(t, "    consume_on_success: false\n", nil)
		issue(t, f, "user@example.com")
		email := "user@example.com"

		f.clock.Advance(10 * time.Second)
		_, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: email, Code: "111111"})
		requireCode(t, err, goerror.CodeUnauthorized)
		assert.Equal(t, 1, f.record(t, email).Attempts)

		f.clock.Advance(10 * time.Second)
		_, err = f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: email, Code: "483920"})
		require.NoError(t, err)
		assert.Equal(t, 1, f.record(t, email).Attempts)

		f.clock.Advance(10 * time.Second)
		_, _ = f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: email, Code: "222222"})
		_, err = f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: email, Code: "333333"})
		requireCode(t, err, goerror.CodeUnauthorized)

		rec := f.record(t, email)
		assert.Equal(t, 3, rec.Attempts)
		require.NotNil(t, rec.BlockedUntil)
		assert.Equal(t, start.Add(30*time.Second+15*time.Minute), *rec.BlockedUntil)

		_, err = f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: email, Code: "483920"})
		requireCode(t, err, goerror.CodeForbidden)

		_, err = f.uc.RequestOtp(t.Context(), RequestOtpInput{Email: email})
		requireCode(t, err, goerror.CodeTooManyRequest)

		f.clock.Set(rec.BlockedUntil.Add(time.Second))
		_, err = f.uc.RequestOtp(t.Context(), RequestOtpInput{Email: email})
		require.NoError(t, err)
		assert.Zero(t, f.record(t, email).Attempts)
	})

	t.Run("parallel wrong codes never exceed the limit", func(t *testing.T) {
		f := newFixture(t, "", nil)
		issue(t, f, "frank@example.com")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			invalid int
		)
		for range 10 {
			wg.Go(func() {
				_, err := f.uc.ValidateOtp(t.Context(), ValidateOtpInput{Email: "frank@example.com", Code: "000000"})
				var gerr *goerror.Error
				if assert.ErrorAs(t, err, &gerr) && gerr.Code() == goerror.CodeUnauthorized {
					mu.Lock()
					invalid++
					mu.Unlock()
				}
			})
		}
		wg.Wait()

		rec := f.record(t, "frank@example.com")
		assert.Equal(t, 3, rec.Attempts)
		assert.Equal(t, 3, invalid)
		assert.NotNil(t, rec.BlockedUntil)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newFixture(t, "", nil)

		tests := []ValidateOtpInput{
			{Email: "", Code: "123456"},
			{Email: "alice@example.com", Code: ""},
			{Email: "alice@example.com", Code: "12ab56"},
			{Email: "alice@example.com", Code: "12345"},
			{Email: "alice@example.com", Code: "1234567"},
		}
		for _, in := range tests {
			_, err := f.uc.ValidateOtp(t.Context(), in)
			requireCode(t, err, goerror.CodeInvalidInput)
		}
	})
}
