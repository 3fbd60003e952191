package loginsession

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-social-login/storage"
	"github.com/rs/zerolog/log"
)

// KVRepo is a storage.KV backed implementation of Repo
type KVRepo struct {
	kv        storage.KV
	namespace string
}

var _ Repo = (*KVRepo)(nil)

// NewKVRepo creates a new token repository; namespace prefixes every key.
func NewKVRepo(kv storage.KV, namespace string) *KVRepo {
	return &KVRepo{kv: kv, namespace: namespace}
}

// TokenKey is the storage key holding the tokens of providerID.
func (r *KVRepo) TokenKey(providerID string) string {
	return r.namespace + "oauth_" + providerID + "_token"
}

// Upsert creates or replaces the tokens of a provider. Tokens never expire in storage;
// IsLoggedIn evicts them lazily.
func (r *KVRepo) Upsert(ctx context.Context, providerID string, tokens StoredTokens) error {
	if providerID == "" {
		return fmt.Errorf("providerID is required")
	}
	b, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("[loginsession Upsert] marshal: %w", err)
	}
	if err := r.kv.Set(ctx, r.TokenKey(providerID), b, 0); err != nil {
		return fmt.Errorf("[loginsession Upsert] store: %w", err)
	}
	return nil
}

// Get retrieves the tokens of a provider. Unreadable records are reported as absent so the
// caller falls back to a fresh login.
func (r *KVRepo) Get(ctx context.Context, providerID string) (StoredTokens, bool, error) {
	if providerID == "" {
		return StoredTokens{}, false, fmt.Errorf("providerID is required")
	}
	b, ok, err := r.kv.Get(ctx, r.TokenKey(providerID))
	if err != nil {
		return StoredTokens{}, false, fmt.Errorf("[loginsession Get] store: %w", err)
	}
	if !ok {
		return StoredTokens{}, false, nil
	}

	var tokens StoredTokens
	if err := json.Unmarshal(b, &tokens); err != nil || tokens.AccessToken == "" {
		log.Warn().Err(err).Str("provider", providerID).Msg("Ignoring unreadable stored tokens")
		return StoredTokens{}, false, nil
	}
	return tokens, true, nil
}

// Delete removes the tokens of a provider. Deleting absent tokens is not an error.
func (r *KVRepo) Delete(ctx context.Context, providerID string) error {
	if providerID == "" {
		return fmt.Errorf("providerID is required")
	}
	if err := r.kv.Del(ctx, r.TokenKey(providerID)); err != nil {
		return fmt.Errorf("[loginsession Delete] store: %w", err)
	}
	return nil
}
