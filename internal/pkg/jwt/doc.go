// Package jwt issues and verifies the HS512 bearer tokens that operators use
// on administrative routes, and carries verified claims through a context.
package jwt
