package entity

import "errors"

var (
	// ErrOTPBlocked rejects a request made during a lockout.
	ErrOTPBlocked = errors.New("otp: email is temporarily blocked")
	// ErrOTPExpired rejects a validation after the code lifetime.
	ErrOTPExpired = errors.New("otp: code has expired")
	// ErrOTPTooManyAttempts rejects a validation once the attempt cap is reached.
	ErrOTPTooManyAttempts = errors.New("otp: too many attempts")
	// ErrOTPInvalidCode rejects a wrong code.
	ErrOTPInvalidCode = errors.New("otp: invalid code")
	// ErrOTPNotFound rejects a validation with no outstanding code.
	ErrOTPNotFound = errors.New("otp: no outstanding code")
)
