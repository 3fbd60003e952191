// Package token talks to provider token and resource endpoints.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-social-login/internal/metrics"
	"github.com/jrsteele09/go-social-login/internal/utils"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/providers"
	xoauth2 "golang.org/x/oauth2"
)

const maxErrorBody = 4096

// Client performs the authorization_code and refresh_token grants and the resource fetch.
type Client struct {
	httpClient *http.Client
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(tc *Client) {
		if c != nil {
			tc.httpClient = c
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(tc *Client) {
		tc.metrics = m
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange redeems an authorization code at the provider's token endpoint.
func (c *Client) Exchange(ctx context.Context, cfg *providers.Config, req oauthmodel.TokenRequest) (*oauth2.TokenResponse, error) {
	if cfg.AccessTokenEndpoint == "" {
		return nil, &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "accessTokenEndpoint"}
	}
	oc := c.oauthConfig(cfg, req.RedirectURI, req.Scope)

	var opts []xoauth2.AuthCodeOption
	if req.CodeVerifier != "" {
		opts = append(opts, xoauth2.VerifierOption(req.CodeVerifier))
	}
	for k, v := range cfg.AdditionalTokenParameters {
		opts = append(opts, xoauth2.SetAuthURLParam(k, v))
	}

	tok, err := oc.Exchange(c.context(ctx), req.Code, opts...)
	if err != nil {
		httpErr := toHTTPError(oauthmodel.ErrTokenExchange, cfg.AccessTokenEndpoint, err)
		c.metrics.TokenRequest(cfg.ID, string(oauth2.AuthorizationCodeGrant), httpErr.StatusCode)
		return nil, httpErr
	}
	c.metrics.TokenRequest(cfg.ID, string(oauth2.AuthorizationCodeGrant), http.StatusOK)
	return fromToken(tok), nil
}

// Refresh performs the refresh_token grant.
func (c *Client) Refresh(ctx context.Context, cfg *providers.Config, refreshToken string) (*oauth2.TokenResponse, error) {
	if refreshToken == "" {
		return nil, oauthmodel.ErrNoRefreshToken
	}
	if cfg.AccessTokenEndpoint == "" {
		return nil, &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "accessTokenEndpoint"}
	}
	oc := c.oauthConfig(cfg, "", nil)

	tok, err := oc.TokenSource(c.context(ctx), &xoauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		httpErr := toHTTPError(oauthmodel.ErrRefresh, cfg.AccessTokenEndpoint, err)
		c.metrics.TokenRequest(cfg.ID, string(oauth2.RefreshTokenGrant), httpErr.StatusCode)
		return nil, httpErr
	}
	c.metrics.TokenRequest(cfg.ID, string(oauth2.RefreshTokenGrant), http.StatusOK)
	return fromToken(tok), nil
}

// FetchResource GETs the provider's resource URL with the access token as a Bearer credential.
func (c *Client) FetchResource(ctx context.Context, cfg *providers.Config, accessToken string) (map[string]any, error) {
	if cfg.ResourceURL == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ResourceURL, nil)
	if err != nil {
		return nil, &oauthmodel.HTTPError{Kind: oauthmodel.ErrResourceFetch, URL: cfg.ResourceURL, Err: err}
	}
	(&xoauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	for k, v := range cfg.AdditionalResourceHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &oauthmodel.HTTPError{Kind: oauthmodel.ErrResourceFetch, URL: cfg.ResourceURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &oauthmodel.HTTPError{Kind: oauthmodel.ErrResourceFetch, URL: cfg.ResourceURL, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &oauthmodel.HTTPError{Kind: oauthmodel.ErrResourceFetch, URL: cfg.ResourceURL, StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &oauthmodel.HTTPError{Kind: oauthmodel.ErrResourceFetch, URL: cfg.ResourceURL, StatusCode: resp.StatusCode, Err: err}
	}
	if m, ok := decoded.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"data": decoded}, nil
}

func (c *Client) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, xoauth2.HTTPClient, c.httpClient)
}

func (c *Client) oauthConfig(cfg *providers.Config, redirectURI string, scope []string) *xoauth2.Config {
	return &xoauth2.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: xoauth2.Endpoint{
			AuthURL:   cfg.AuthorizationBaseURL,
			TokenURL:  cfg.AccessTokenEndpoint,
			AuthStyle: xoauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      scope,
	}
}

func fromToken(tok *xoauth2.Token) *oauth2.TokenResponse {
	tr := &oauth2.TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
	}
	if tr.ExpiresIn == 0 {
		tr.ExpiresIn = int64Extra(tok.Extra("expires_in"))
	}
	if s, ok := tok.Extra("id_token").(string); ok {
		tr.IdToken = s
	}
	// some providers answer with a JSON array
	tr.Scope = utils.SpaceDelimited(tok.Extra("scope"))
	return tr
}

func int64Extra(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func toHTTPError(kind error, url string, err error) *oauthmodel.HTTPError {
	var re *xoauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &oauthmodel.HTTPError{Kind: kind, URL: url, StatusCode: re.Response.StatusCode, Body: truncate(re.Body)}
	}
	return &oauthmodel.HTTPError{Kind: kind, URL: url, Err: err}
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return fmt.Sprintf("%s...", s[:maxErrorBody])
	}
	return s
}
