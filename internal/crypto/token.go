// Package crypto generates opaque credentials and hashes them for storage.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Credential prefixes. The prefix identifies the credential type on sight and
// lets the bearer validator dispatch without a lookup.
const (
	AccessTokenPrefix  = "at_"
	RefreshTokenPrefix = "rt_"
	AuthCodePrefix     = "ac_"
	ClientSecretPrefix = "cs_"
	APIKeyPrefix       = "ak_"
	ConsentNoncePrefix = "cn_"
)

// APIKeyLookupLength is the number of leading characters of an API key stored
// in clear for candidate lookup.
const APIKeyLookupLength = 12

const tokenBytes = 32

// NewToken returns prefix followed by 256 bits of randomness, base64url
// encoded without padding.
func NewToken(prefix string) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// LookupHash returns the hex SHA-256 of a high-entropy credential. Codes and
// tokens are stored and looked up by this value.
func LookupHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// APIKeyLookup returns the clear lookup prefix of an API key, or "" if key is
// not shaped like one.
func APIKeyLookup(key string) string {
	if !strings.HasPrefix(key, APIKeyPrefix) || len(key) <= APIKeyLookupLength {
		return ""
	}
	return key[:APIKeyLookupLength]
}

// Equal compares two strings in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewID returns a random record identifier.
func NewID() string {
	return uuid.New().String()
}
