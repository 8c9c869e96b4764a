// Package uid generates identifiers: UUIDv7 strings for correlation and
// token ids, snowflake numbers for stored records.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}

// NumberID generates numeric identifiers.
type NumberID interface {
	Generate() int64
}
