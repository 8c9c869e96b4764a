// Package otpcode draws fixed-width numeric one-time codes.
package otpcode

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"strconv"
)

const (
	// DefaultLength is the number of digits produced by New(0).
	DefaultLength = 6
	MinLength     = 4
	MaxLength     = 10
)

// ErrInvalidLength is returned for a length outside [MinLength, MaxLength].
var ErrInvalidLength = errors.New("otpcode: length must be between 4 and 10")

// Generator returns codes drawn uniformly from [10^(n-1), 10^n-1], so the
// first digit is never zero and every code has exactly n digits.
type Generator struct {
	length int
	floor  *big.Int
	span   *big.Int
	rand   io.Reader
}

// New builds a generator for length digits. Zero means DefaultLength.
func New(length int) (*Generator, error) {
	return newWithReader(length, rand.Reader)
}

func newWithReader(length int, r io.Reader) (*Generator, error) {
	if length == 0 {
		length = DefaultLength
	}
	if length < MinLength || length > MaxLength {
		return nil, ErrInvalidLength
	}

	floor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	ceil := new(big.Int).Mul(floor, big.NewInt(10))

	return &Generator{
		length: length,
		floor:  floor,
		span:   new(big.Int).Sub(ceil, floor),
		rand:   r,
	}, nil
}

// Length is the number of digits in every generated code.
func (g *Generator) Length() int {
	return g.length
}

// Generate is safe for concurrent use.
func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(g.rand, g.span)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Add(n, g.floor).Int64(), 10), nil
}
