package util

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"

	"github.com/pkg/errors"
)

// TokenLen is the length of a paste identifier in characters.
const TokenLen = 8

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// NewToken returns a fresh paste identifier: TokenLen/2 bytes from
// crypto/rand, hex encoded, so always TokenLen lowercase hex characters.
// Uniqueness is not guaranteed here; the insert path handles collisions.
func NewToken() (string, error) {
	buf := make([]byte, TokenLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}
	return hex.EncodeToString(buf), nil
}

// ValidToken reports whether id has the shape of a paste identifier.
// Rejecting malformed ids early keeps path traversal junk and
// arbitrary-length strings away from the storage layer.
func ValidToken(id string) bool {
	return tokenPattern.MatchString(id)
}
