package auth_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-social-login/auth"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/pkce"
	"github.com/jrsteele09/go-social-login/providers"
	"github.com/stretchr/testify/require"
)

func genericConfig() *providers.Config {
	return &providers.Config{
		ID:                   "acme",
		AppID:                "client-1",
		AuthorizationBaseURL: "https://idp.example.com/authorize?tenant=t1",
		AccessTokenEndpoint:  "https://idp.example.com/token",
		RedirectURL:          "http://127.0.0.1:8765/callback",
		ResponseType:         oauth2.CodeResponseType,
		PKCEEnabled:          true,
		Scope:                []string{"openid", "email"},
		AdditionalParameters: map[string]string{"prompt": "login", "display": "popup"},
		LoginHint:            "cfg@example.com",
		Audience:             "api",
	}
}

// TestBuildAuthorizationRequest tests the query of a PKCE code flow URL
func TestBuildAuthorizationRequest(t *testing.T) {
	req, err := auth.BuildAuthorizationRequest(genericConfig(), oauthmodel.LoginOptions{
		AdditionalParameters: map[string]string{"display": "page"},
		LoginHint:            "call@example.com",
		Prompt:               "consent",
		ForceLogin:           true,
	})
	require.NoError(t, err)
	require.Len(t, req.State, 32)
	require.Len(t, req.CodeVerifier, pkce.VerifierLength)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	require.Equal(t, "idp.example.com", u.Host)
	q := u.Query()
	require.Equal(t, "t1", q.Get("tenant"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "client-1", q.Get("client_id"))
	require.Equal(t, "http://127.0.0.1:8765/callback", q.Get("redirect_uri"))
	require.Equal(t, req.State, q.Get("state"))
	require.Equal(t, "openid email", q.Get("scope"))
	require.Equal(t, pkce.CodeChallenge(req.CodeVerifier), q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NoError(t, auth.ValidatePKCE(q.Get("code_challenge"), q.Get("code_challenge_method")))

	// merged parameters win over promoted fields
	require.Equal(t, "page", q.Get("display"))
	require.Equal(t, "login", q.Get("prompt"))
	require.Equal(t, "call@example.com", q.Get("login_hint"))
	require.Equal(t, "api", q.Get("audience"))
	require.Equal(t, "true", q.Get("force_login"))
	require.Empty(t, q.Get("nonce"))
}

// TestBuildAuthorizationRequestOverrides tests that call options replace configured values
func TestBuildAuthorizationRequestOverrides(t *testing.T) {
	req, err := auth.BuildAuthorizationRequest(genericConfig(), oauthmodel.LoginOptions{
		State:       "caller-state-1",
		RedirectURI: "http://localhost:9000/cb",
		Scope:       []string{"profile"},
		Nonce:       "n-1",
	})
	require.NoError(t, err)
	require.Equal(t, "caller-state-1", req.State)
	require.Equal(t, "http://localhost:9000/cb", req.RedirectURI)
	require.Equal(t, []string{"profile"}, req.Scope)
	require.Equal(t, "n-1", req.Nonce)
	require.True(t, strings.Contains(req.URL, "nonce=n-1"))
}

// TestBuildAuthorizationRequestImplicit tests that the implicit flow carries no PKCE
func TestBuildAuthorizationRequestImplicit(t *testing.T) {
	cfg := genericConfig()
	cfg.ResponseType = oauth2.TokenResponseType
	req, err := auth.BuildAuthorizationRequest(cfg, oauthmodel.LoginOptions{})
	require.NoError(t, err)
	require.Empty(t, req.CodeVerifier)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	require.Equal(t, "token", u.Query().Get("response_type"))
	require.Empty(t, u.Query().Get("code_challenge"))
}

// TestBuildAuthorizationRequestMissingEndpoint tests that an undiscovered provider is refused
func TestBuildAuthorizationRequestMissingEndpoint(t *testing.T) {
	cfg := genericConfig()
	cfg.AuthorizationBaseURL = ""
	_, err := auth.BuildAuthorizationRequest(cfg, oauthmodel.LoginOptions{})
	require.ErrorIs(t, err, oauthmodel.ErrConfig)
}

// TestBuildAuthorizationRequestGoogle tests the Google offline access and nonce quirks
func TestBuildAuthorizationRequestGoogle(t *testing.T) {
	cfg, err := providers.Normalize("google", providers.RawConfig{
		AppID:                "g",
		RedirectURL:          "http://127.0.0.1:8765/callback",
		AuthorizationBaseURL: "https://accounts.google.com/o/oauth2/v2/auth",
		HostedDomain:         "example.com",
	})
	require.NoError(t, err)

	req, err := auth.BuildAuthorizationRequest(cfg, oauthmodel.LoginOptions{Scope: []string{"openid", "offline_access"}})
	require.NoError(t, err)
	q := mustQuery(t, req.URL)
	require.Equal(t, "openid", q.Get("scope"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "example.com", q.Get("hd"))
	require.NotEmpty(t, req.Nonce)
	require.Equal(t, req.Nonce, q.Get("nonce"))
}

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}
