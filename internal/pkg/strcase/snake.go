// Package strcase converts Go identifiers to the casing used on the wire.
package strcase

import (
	"strings"
	"unicode"
)

// ToLowerSnake converts an identifier to snake_case, keeping initialisms
// together: "RetryAfterSeconds" -> "retry_after_seconds", "HTTPServer" -> "http_server".
func ToLowerSnake(s string) string {
	runes := []rune(s)

	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
