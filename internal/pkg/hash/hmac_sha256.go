package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 hashes with a keyed SHA-256 and hex encodes the digest.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 creates a new hasher keyed by secret.
func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{secret: []byte(secret)}
}

func (s *HMACSHA256) Hash(plaintext string) ([]byte, error) {
	return s.sum(plaintext), nil
}

// Verify compares in constant time.
func (s *HMACSHA256) Verify(hashed, plaintext string) bool {
	return hmac.Equal([]byte(hashed), s.sum(plaintext))
}

func (s *HMACSHA256) sum(plaintext string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(plaintext))
	digest := mac.Sum(nil)

	out := make([]byte, hex.EncodedLen(len(digest)))
	hex.Encode(out, digest)
	return out
}
