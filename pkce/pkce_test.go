package pkce_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-social-login/pkce"
	"github.com/stretchr/testify/require"
)

const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

// TestCodeChallenge_RFC7636Vector checks the S256 derivation against the RFC 7636 appendix B example
func TestCodeChallenge_RFC7636Vector(t *testing.T) {
	require.Equal(t, rfcChallenge, pkce.CodeChallenge(rfcVerifier))
}

// TestNewCodeVerifier_Alphabet tests length and character set of generated verifiers
func TestNewCodeVerifier_Alphabet(t *testing.T) {
	const allowed = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	for i := 0; i < 50; i++ {
		v, err := pkce.NewCodeVerifier()
		require.NoError(t, err)
		require.Len(t, v, pkce.VerifierLength)
		for _, c := range v {
			require.True(t, strings.ContainsRune(allowed, c), "unexpected character %q", c)
		}
		require.Len(t, pkce.CodeChallenge(v), 43)
	}
}

// TestNewState_Unique tests that state tokens do not repeat
func TestNewState_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		s := pkce.NewState()
		require.Len(t, s, 32)
		_, dup := seen[s]
		require.False(t, dup)
		seen[s] = struct{}{}
	}
}
