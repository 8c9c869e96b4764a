package hash

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnknownDriver is returned by New for an unsupported driver name.
var ErrUnknownDriver = errors.New("hash: unknown driver")

// Hash turns a plaintext secret into a storable value and checks it later.
type Hash interface {
	Hash(plaintext string) ([]byte, error)
	Verify(hashed, plaintext string) bool
}

// Config selects and parameterizes a Hash implementation.
type Config struct {
	// Driver is one of "hmac", "bcrypt" or "argon2id". Empty means "hmac".
	Driver string
	// Secret keys the HMAC and is used as pepper by bcrypt and argon2id.
	Secret string
	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int
}

// New builds the Hash described by cfg.
func New(cfg Config) (Hash, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "hmac":
		return NewHMACSHA256(cfg.Secret), nil
	case "bcrypt":
		cost := cfg.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		return NewBcrypt(cost, cfg.Secret), nil
	case "argon2id":
		return NewArgon2id(cfg.Secret), nil
	default:
		return nil, ErrUnknownDriver
	}
}
