// Package mail sends email messages.
//
// Callers depend on the Mail interface and the provider-agnostic Message
// payload. SMTP is the only delivery mechanism shipped here; it honours the
// caller's context deadline for the whole dial-to-quit exchange.
package mail
