package oauthmodel

// TokenRequest holds parameters for an authorization_code request to the token endpoint.
type TokenRequest struct {
	// Code is the authorization code received from the authorization endpoint.
	// Usage: Exchanged once for tokens, then becomes invalid
	Code string

	// CodeVerifier is the PKCE code verifier that matches the code_challenge.
	// Required: Yes (if PKCE was used in the authorization request)
	// Example: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	CodeVerifier string

	// RedirectURI must equal the redirect_uri sent in the authorization request.
	RedirectURI string

	// Scope is the scope requested when the attempt started, used when the provider omits one.
	Scope []string
}
