package token_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/go-social-login/internal/metrics"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/providers"
	"github.com/jrsteele09/go-social-login/token"
	"github.com/stretchr/testify/require"
)

type idp struct {
	*httptest.Server
	lastForm url.Values
	status   int
	answer   map[string]any
}

func newIDP(t *testing.T) *idp {
	t.Helper()
	p := &idp{status: http.StatusOK}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = r.ParseForm()
			p.lastForm = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(p.status)
			if p.status != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(p.answer)
		case "/me":
			if r.Header.Get("Authorization") != "Bearer at-1" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sub":"42","tenant":"` + r.Header.Get("X-Tenant") + `"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *idp) config() *providers.Config {
	return &providers.Config{
		ID:                        "acme",
		AppID:                     "client-1",
		AccessTokenEndpoint:       p.URL + "/token",
		ResourceURL:               p.URL + "/me",
		AdditionalTokenParameters: map[string]string{"audience": "api"},
		AdditionalResourceHeaders: map[string]string{"X-Tenant": "t1"},
	}
}

// TestExchange tests the authorization_code grant form and the mapped answer
func TestExchange(t *testing.T) {
	p := newIDP(t)
	p.answer = map[string]any{
		"access_token":  "at-1",
		"token_type":    "Bearer",
		"expires_in":    120,
		"refresh_token": "rt-1",
		"id_token":      "id-1",
		"scope":         "openid email",
	}
	m := metrics.New()
	c := token.NewClient(token.WithHTTPClient(p.Client()), token.WithMetrics(m))

	tr, err := c.Exchange(context.Background(), p.config(), oauthmodel.TokenRequest{
		Code:         "code-1",
		CodeVerifier: "verifier-1",
		RedirectURI:  "http://127.0.0.1:8765/callback",
	})
	require.NoError(t, err)
	require.Equal(t, "authorization_code", p.lastForm.Get("grant_type"))
	require.Equal(t, "code-1", p.lastForm.Get("code"))
	require.Equal(t, "verifier-1", p.lastForm.Get("code_verifier"))
	require.Equal(t, "client-1", p.lastForm.Get("client_id"))
	require.Equal(t, "http://127.0.0.1:8765/callback", p.lastForm.Get("redirect_uri"))
	require.Equal(t, "api", p.lastForm.Get("audience"))
	require.Empty(t, p.lastForm.Get("client_secret"))

	require.Equal(t, "at-1", tr.AccessToken)
	require.Equal(t, "rt-1", tr.RefreshToken)
	require.Equal(t, "id-1", tr.IdToken)
	require.Equal(t, int64(120), tr.ExpiresIn)
	require.Equal(t, "openid email", tr.Scope)
}

// TestExchangeFailure tests that a non-2xx token answer keeps its status and body
func TestExchangeFailure(t *testing.T) {
	p := newIDP(t)
	p.status = http.StatusBadRequest
	c := token.NewClient(token.WithHTTPClient(p.Client()))

	_, err := c.Exchange(context.Background(), p.config(), oauthmodel.TokenRequest{Code: "bad"})
	require.ErrorIs(t, err, oauthmodel.ErrTokenExchange)
	var httpErr *oauthmodel.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	require.Contains(t, httpErr.Body, "invalid_grant")
}

// TestRefresh tests the refresh_token grant
func TestRefresh(t *testing.T) {
	p := newIDP(t)
	p.answer = map[string]any{"access_token": "at-2", "token_type": "Bearer", "expires_in": 60}
	c := token.NewClient(token.WithHTTPClient(p.Client()))

	tr, err := c.Refresh(context.Background(), p.config(), "rt-1")
	require.NoError(t, err)
	require.Equal(t, "refresh_token", p.lastForm.Get("grant_type"))
	require.Equal(t, "rt-1", p.lastForm.Get("refresh_token"))
	require.Equal(t, "at-2", tr.AccessToken)

	p.status = http.StatusUnauthorized
	_, err = c.Refresh(context.Background(), p.config(), "rt-1")
	require.ErrorIs(t, err, oauthmodel.ErrRefresh)

	_, err = c.Refresh(context.Background(), p.config(), "")
	require.ErrorIs(t, err, oauthmodel.ErrNoRefreshToken)
}

// TestFetchResource tests the Bearer resource request with extra headers
func TestFetchResource(t *testing.T) {
	p := newIDP(t)
	c := token.NewClient(token.WithHTTPClient(p.Client()))

	data, err := c.FetchResource(context.Background(), p.config(), "at-1")
	require.NoError(t, err)
	require.Equal(t, "42", data["sub"])
	require.Equal(t, "t1", data["tenant"])

	_, err = c.FetchResource(context.Background(), p.config(), "wrong")
	require.ErrorIs(t, err, oauthmodel.ErrResourceFetch)
	var httpErr *oauthmodel.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	cfg := p.config()
	cfg.ResourceURL = ""
	data, err = c.FetchResource(context.Background(), cfg, "at-1")
	require.NoError(t, err)
	require.Nil(t, data)
}

// TestStoredDefaults tests expiry and scope defaults of the persisted token set
func TestStoredDefaults(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	st := token.Stored(&oauth2.TokenResponse{AccessToken: "at"}, []string{"openid"}, now)
	require.Equal(t, int64(1_000_000+3600*1000), st.ExpiresAt)
	require.Equal(t, []string{"openid"}, st.Scope)
	require.Equal(t, "Bearer", st.TokenType)

	st = token.Stored(&oauth2.TokenResponse{AccessToken: "at", ExpiresIn: 10, Scope: "a b"}, []string{"openid"}, now)
	require.Equal(t, int64(1_010_000), st.ExpiresAt)
	require.Equal(t, []string{"a", "b"}, st.Scope)

	resp := token.NewLoginResponse("acme", st, now, map[string]any{"sub": "1"})
	require.Equal(t, "acme", resp.ProviderID)
	require.Equal(t, int64(10), resp.ExpiresIn)
	require.Equal(t, "at", resp.AccessToken.Token)
	require.Equal(t, int64(1_010_000), resp.AccessToken.Expires)
	require.Nil(t, resp.IDTokenClaims)
}
