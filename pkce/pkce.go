// Package pkce generates the per-attempt secrets of an authorization request:
// the CSRF state token and the RFC 7636 code verifier / S256 challenge pair.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// MethodS256 is the only challenge method this module emits.
	MethodS256 = "S256"

	// VerifierLength is the number of characters in a generated code verifier (RFC 7636 allows 43-128).
	VerifierLength = 64

	unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
)

// NewState returns a random, single-use state token.
func NewState() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewCodeVerifier returns a random verifier over the RFC 7636 unreserved alphabet.
func NewCodeVerifier() (string, error) {
	// 66 symbols: reject bytes >= 198 (3*66) so every symbol is equally likely.
	const limit = 256 - 256%len(unreserved)
	out := make([]byte, 0, VerifierLength)
	buf := make([]byte, VerifierLength*2)
	for len(out) < VerifierLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("[pkce NewCodeVerifier] failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, unreserved[int(b)%len(unreserved)])
			if len(out) == VerifierLength {
				break
			}
		}
	}
	return string(out), nil
}

// CodeChallenge derives the S256 challenge for verifier.
func CodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return Base64URLEncode(hash[:])
}

// Base64URLEncode encodes b as unpadded base64url.
func Base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
