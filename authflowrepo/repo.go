// Package authflowrepo stores the pending login of every in-flight authorization attempt,
// keyed by its state token. A record is consumed at most once.
package authflowrepo

import (
	"context"
	"time"
)

// PendingLogin is what the starting context hands over to the redirect callback context.
type PendingLogin struct {
	ProviderID   string    `json:"providerId"`
	CodeVerifier string    `json:"codeVerifier,omitempty"`
	RedirectURI  string    `json:"redirectUri"`
	Scope        []string  `json:"scope"`
	Nonce        string    `json:"nonce,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Repo interface {
	// Upsert stores the pending login for state
	Upsert(ctx context.Context, state string, pending *PendingLogin) error

	// Consume reads and deletes the pending login for state. It returns errors.ErrNotFound when the
	// record expired, was already consumed or never existed.
	Consume(ctx context.Context, state string) (*PendingLogin, error)

	// SetMarker records that a login is in flight, for the redirect context to pick up on load
	SetMarker(ctx context.Context) error

	// ClearMarker removes the in-flight marker
	ClearMarker(ctx context.Context) error

	// HasMarker reports whether a login is in flight
	HasMarker(ctx context.Context) (bool, error)
}
