package auth

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/pkce"
	"github.com/jrsteele09/go-social-login/providers"
)

// AuthorizationRequest is a fully built authorization URL together with the values the redirect
// callback needs to complete the attempt.
type AuthorizationRequest struct {
	// URL is the provider's authorization endpoint with every query parameter applied.
	// Example: https://idp.example.com/authorize?response_type=code&client_id=...&state=...
	URL string

	// State is the CSRF token echoed back by the provider.
	// Security: single use; the pending login stored under it is consumed by the callback
	State string

	// CodeVerifier is the PKCE secret whose S256 hash was sent as code_challenge.
	// Only present: code flow with PKCE enabled
	// Security: never leaves this process except in the token request
	CodeVerifier string

	// RedirectURI is the redirect_uri sent in the URL, replayed verbatim at the token endpoint.
	RedirectURI string

	// Scope is the scope list actually requested, after provider adjustments.
	Scope []string

	// Nonce is the nonce sent in the URL, if any.
	Nonce string
}

// BuildAuthorizationRequest builds the authorization URL for cfg, applying per-call options over
// the provider configuration. It never emits a URL without an authorization endpoint.
func BuildAuthorizationRequest(cfg *providers.Config, opts oauthmodel.LoginOptions) (*AuthorizationRequest, error) {
	if cfg.AuthorizationBaseURL == "" {
		return nil, &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "authorizationBaseUrl", Reason: "not configured and not discovered"}
	}
	endpoint, err := url.Parse(cfg.AuthorizationBaseURL)
	if err != nil {
		return nil, &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "authorizationBaseUrl", Reason: err.Error()}
	}

	req := &AuthorizationRequest{
		State:       firstNonEmpty(opts.State, pkce.NewState()),
		RedirectURI: firstNonEmpty(opts.RedirectURI, cfg.RedirectURL),
		Scope:       slices.Clone(cfg.Scope),
	}
	if len(opts.Scope) > 0 {
		req.Scope = slices.Clone(opts.Scope)
	}

	params := maps.Clone(cfg.AdditionalParameters)
	if params == nil {
		params = map[string]string{}
	}
	maps.Copy(params, opts.AdditionalParameters)

	promote(params, "login_hint", firstNonEmpty(opts.LoginHint, cfg.LoginHint))
	promote(params, "prompt", firstNonEmpty(opts.Prompt, cfg.Prompt))
	promote(params, "audience", cfg.Audience)
	promote(params, "hd", cfg.HostedDomain)
	if opts.ForceLogin {
		promote(params, "force_login", "true")
	}
	req.Scope = cfg.AdjustAuthorization(req.Scope, params)

	nonce := firstNonEmpty(opts.Nonce, cfg.Nonce)
	if nonce == "" && cfg.NeedsNonce(req.Scope) {
		nonce = pkce.NewState()
	}
	promote(params, "nonce", nonce)
	req.Nonce = params["nonce"]

	query := endpoint.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("response_type", string(cfg.ResponseType))
	query.Set("client_id", cfg.AppID)
	query.Set("redirect_uri", req.RedirectURI)
	query.Set("state", req.State)
	if len(req.Scope) > 0 {
		query.Set("scope", strings.Join(req.Scope, " "))
	}

	if cfg.UsesPKCE() {
		verifier, err := pkce.NewCodeVerifier()
		if err != nil {
			return nil, err
		}
		challenge := pkce.CodeChallenge(verifier)
		if err := ValidatePKCE(challenge, pkce.MethodS256); err != nil {
			return nil, fmt.Errorf("[auth BuildAuthorizationRequest] %w", err)
		}
		req.CodeVerifier = verifier
		query.Set("code_challenge", challenge)
		query.Set("code_challenge_method", pkce.MethodS256)
	}

	endpoint.RawQuery = query.Encode()
	req.URL = endpoint.String()
	return req, nil
}

// promote adds key only when it has a value and the merged parameters do not carry it yet.
func promote(params map[string]string, key, value string) {
	if value == "" {
		return
	}
	if _, ok := params[key]; !ok {
		params[key] = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
