// Package loginsession stores the tokens of every logged in provider.
package loginsession

import (
	"context"
	"time"
)

// StoredTokens is the persisted token set of one provider.
type StoredTokens struct {
	// Tokens (access is required, the rest depend on the provider and requested scopes)
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IDToken      string `json:"idToken,omitempty"`

	// ExpiresAt is the access token expiry in epoch milliseconds
	ExpiresAt int64 `json:"expiresAt"`

	Scope     []string `json:"scope"`
	TokenType string   `json:"tokenType"`
}

// Expired reports whether the access token is no longer usable at now.
func (t StoredTokens) Expired(now time.Time) bool {
	return t.ExpiresAt <= now.UnixMilli()
}

type Repo interface {
	Upsert(ctx context.Context, providerID string, tokens StoredTokens) error
	Get(ctx context.Context, providerID string) (StoredTokens, bool, error)
	Delete(ctx context.Context, providerID string) error
}
