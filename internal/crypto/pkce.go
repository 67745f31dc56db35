package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// PKCE code challenge methods (RFC 7636).
const (
	ChallengeS256  = "S256"
	ChallengePlain = "plain"
)

// ValidChallengeMethod reports whether method is supported.
func ValidChallengeMethod(method string) bool {
	return method == ChallengeS256 || method == ChallengePlain
}

// S256Challenge derives the S256 code challenge for verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyCodeChallenge checks verifier against the stored challenge.
func VerifyCodeChallenge(verifier, challenge, method string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	switch method {
	case ChallengeS256:
		return Equal(S256Challenge(verifier), challenge)
	case ChallengePlain:
		return Equal(verifier, challenge)
	default:
		return false
	}
}
