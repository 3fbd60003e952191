package oauth2

// ResponseType represents the OAuth 2.0 response type requested from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType requests an authorization code that is exchanged at the token endpoint.
	// Example: /authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"

	// TokenResponseType requests tokens directly in the redirect fragment (implicit flow).
	// No token endpoint call is made; PKCE does not apply.
	TokenResponseType ResponseType = "token"
)

// Valid reports whether r is a response type this module can drive.
func (r ResponseType) Valid() bool {
	switch r {
	case CodeResponseType, TokenResponseType:
		return true
	}
	return false
}

// Flow selects how the authorization page is presented to the user.
type Flow string

const (
	// PopupFlow opens the authorization URL in a separate browsing context and waits for the
	// redirect callback to signal completion. This is the default.
	PopupFlow Flow = "popup"

	// RedirectFlow navigates the current context to the authorization URL. The calling Login
	// never completes on its own: the context that started it is expected to be torn down.
	RedirectFlow Flow = "redirect"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, redirect_uri, code_verifier (if PKCE)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Token request includes: refresh_token, client_id
	RefreshTokenGrant GrantType = "refresh_token"

	// ImplicitGrant is not a token endpoint grant; it labels tokens recovered from the redirect fragment.
	ImplicitGrant GrantType = "implicit"
)

// MessageType labels the payload exchanged between the callback context and the waiting opener.
type MessageType string

const (
	// ResponseMessage carries a successful LoginResponse.
	ResponseMessage MessageType = "oauth-response"
	// ErrorMessage carries a failure description.
	ErrorMessage MessageType = "oauth-error"
)
