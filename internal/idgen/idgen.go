// Package idgen generates and vets request IDs for the HTTP and gRPC
// surfaces. Generated IDs are backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefix is prepended to every generated request ID.
const Prefix = "req-"

// alphabet is the character set of the random portion. Lower case only so
// IDs survive case-folding log pipelines.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Length is the number of random characters generated (excluding the prefix).
const Length = 16

// MaxCallerLength bounds request IDs accepted from callers.
const MaxCallerLength = 128

// Generate returns a new request ID such as "req-3f9k2m0q8z1x7c4v".
func Generate() (string, error) {
	id, err := nanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}
	return Prefix + id, nil
}

// Acceptable reports whether a caller-supplied request ID may be propagated
// into logs and response headers: 1 to MaxCallerLength characters drawn
// from letters, digits, '-', '_' and '.'.
func Acceptable(id string) bool {
	if id == "" || len(id) > MaxCallerLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}

// FromCaller returns id when it is Acceptable, otherwise a fresh ID.
func FromCaller(id string) (string, error) {
	if Acceptable(id) {
		return id, nil
	}
	return Generate()
}
