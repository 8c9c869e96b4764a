// Package clock provides a tiny time abstraction.
//
// Business code depends on the Clocker interface instead of calling time.Now()
// directly. Tests use Manual to move time across expiry and lockout boundaries
// deterministically.
package clock
