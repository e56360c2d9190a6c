// Package token generates session tokens from a cryptographically secure
// source. A token is 12 characters over a 62-symbol alphanumeric alphabet,
// giving just over 71 bits of entropy. Tokens are the security boundary of
// the beacon protocol; the 16-bit wire hash is not.
package token

import (
	"crypto/rand"
	"fmt"

	"github.com/attendly/beacon-service/internal/domain"
)

const (
	// Length is fixed so entropy is bounded and storage stays predictable.
	Length = 12

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Generate returns a new session token. If the secure random source is
// unavailable it fails loudly with ErrUnavailable; there is no weaker
// fallback and no point retrying within the request.
func Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: secure random source: %v", domain.ErrUnavailable, err)
	}

	out := make([]byte, Length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Valid reports whether s has the shape of a session token: exactly
// Length characters, all alphanumeric.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
