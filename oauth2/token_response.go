package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
type TokenResponse struct {
	// AccessToken is the token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// IdToken is the OpenID Connect ID token.
	// Only present: When "openid" scope was requested
	IdToken string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token, typically "bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Absent: treated as 3600 seconds by this module
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Only present: When the provider issues one (usually with an offline_access style scope)
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions, space separated.
	// Note: May be less than requested if some scopes were denied
	Scope string `json:"scope,omitempty"`
}

// AccessToken is the access token portion of a LoginResponse.
type AccessToken struct {
	Token        string `json:"token"`
	TokenType    string `json:"tokenType"`
	Expires      int64  `json:"expires"` // epoch milliseconds
	RefreshToken string `json:"refreshToken,omitempty"`
}

// LoginResponse is the normalized result returned to callers of Login and Refresh,
// whatever identity provider produced it.
type LoginResponse struct {
	ProviderID   string         `json:"providerId"`
	AccessToken  *AccessToken   `json:"accessToken"`
	IDToken      string         `json:"idToken,omitempty"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	ResourceData map[string]any `json:"resourceData,omitempty"`
	Scope        []string       `json:"scope"`
	TokenType    string         `json:"tokenType"`
	ExpiresIn    int64          `json:"expiresIn"`

	// IDTokenClaims holds the decoded, unverified payload of IDToken. Informational only.
	IDTokenClaims map[string]any `json:"idTokenClaims,omitempty"`
}

// AuthorizationCode is what GetAuthorizationCode returns for a logged in provider.
// The older "jwt" naming used by some providers maps to IDToken.
type AuthorizationCode struct {
	AccessToken string `json:"accessToken"`
	IDToken     string `json:"idToken,omitempty"`
}
