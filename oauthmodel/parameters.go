package oauthmodel

import "github.com/jrsteele09/go-social-login/oauth2"

// LoginOptions holds the per-call parameters for a login attempt.
// Every field is optional; empty values fall back to the provider configuration.
type LoginOptions struct {
	// Flow selects popup (default) or redirect presentation.
	Flow oauth2.Flow

	// Scope overrides the configured scopes for this call.
	// Example: []string{"openid", "profile", "offline_access"}
	Scope []string

	// RedirectURI overrides the configured redirect URL.
	// Security: must be registered with the provider, and is replayed verbatim at the token endpoint
	RedirectURI string

	// State supplies the CSRF token instead of generating one.
	// Security: must be unpredictable; reuse breaks the single-use guarantee
	State string

	// AdditionalParameters are merged over the configured additional parameters (call wins).
	AdditionalParameters map[string]string

	// LoginHint pre-fills the username/email on the provider's login page (login_hint).
	LoginHint string

	// Prompt controls re-authentication / consent (prompt), e.g. "select_account", "consent".
	Prompt string

	// Nonce binds an ID token to this attempt (nonce).
	Nonce string

	// ForceLogin asks providers that support it (X) to show the login screen (force_login=true).
	ForceLogin bool
}

// RefreshOptions holds the per-call parameters for a refresh.
type RefreshOptions struct {
	// RefreshToken is used instead of the stored one when set.
	RefreshToken string
}

// LogoutOptions holds the per-call parameters for a logout.
type LogoutOptions struct {
	// PostLogoutRedirectURL overrides the configured post_logout_redirect_uri.
	PostLogoutRedirectURL string

	// IDTokenHint overrides the stored ID token sent as id_token_hint.
	IDTokenHint string
}
