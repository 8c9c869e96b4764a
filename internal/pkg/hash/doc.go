// Package hash hashes short secrets such as one-time codes before they are
// stored, and verifies plaintext input against the stored value.
//
// HMACSHA256 is deterministic and cheap, which suits short-lived numeric codes.
// Bcrypt and Argon2id are slower salted alternatives selectable through
// configuration.
package hash
