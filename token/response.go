package token

import (
	"slices"
	"strings"
	"time"

	"github.com/jrsteele09/go-social-login/loginsession"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/token/jwt"
)

// DefaultExpiresIn is assumed when the provider does not say how long the access token lives.
const DefaultExpiresIn int64 = 3600

// Stored converts a token answer into its persisted form. The granted scope wins over the requested one.
func Stored(tr *oauth2.TokenResponse, requested []string, now time.Time) loginsession.StoredTokens {
	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = DefaultExpiresIn
	}
	scope := strings.Fields(tr.Scope)
	if len(scope) == 0 {
		scope = slices.Clone(requested)
	}
	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return loginsession.StoredTokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IdToken,
		ExpiresAt:    now.UnixMilli() + expiresIn*1000,
		Scope:        scope,
		TokenType:    tokenType,
	}
}

// NewLoginResponse builds the provider independent login result.
func NewLoginResponse(providerID string, st loginsession.StoredTokens, now time.Time, resource map[string]any) *oauth2.LoginResponse {
	expiresIn := (st.ExpiresAt - now.UnixMilli()) / 1000
	if expiresIn < 0 {
		expiresIn = 0
	}
	resp := &oauth2.LoginResponse{
		ProviderID: providerID,
		AccessToken: &oauth2.AccessToken{
			Token:        st.AccessToken,
			TokenType:    st.TokenType,
			Expires:      st.ExpiresAt,
			RefreshToken: st.RefreshToken,
		},
		IDToken:      st.IDToken,
		RefreshToken: st.RefreshToken,
		ResourceData: resource,
		Scope:        slices.Clone(st.Scope),
		TokenType:    st.TokenType,
		ExpiresIn:    expiresIn,
	}
	if st.IDToken != "" {
		if claims, err := jwt.DecodePayload(st.IDToken); err == nil {
			resp.IDTokenClaims = claims
		}
	}
	return resp
}
