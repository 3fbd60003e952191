package authflowrepo

import (
	"context"
	"encoding/json"
	"time"

	autherrors "github.com/jrsteele09/go-social-login/internal/errors"
	"github.com/jrsteele09/go-social-login/storage"
	"github.com/rs/zerolog/log"
)

const (
	markerKey   = "oauth_pending"
	statePrefix = "oauth_state_"
)

// KVRepo keeps pending logins in a storage.KV shared by every context of the application.
type KVRepo struct {
	kv        storage.KV
	namespace string
	ttl       time.Duration
}

var _ Repo = (*KVRepo)(nil)

// NewKVRepo creates a repo whose records live for ttl. namespace prefixes every key so several
// applications can share one backend.
func NewKVRepo(kv storage.KV, namespace string, ttl time.Duration) *KVRepo {
	return &KVRepo{kv: kv, namespace: namespace, ttl: ttl}
}

// StateKey is the storage key holding the pending login for state.
func (r *KVRepo) StateKey(state string) string {
	return r.namespace + statePrefix + state
}

// Upsert stores or updates a pending login
func (r *KVRepo) Upsert(ctx context.Context, state string, pending *PendingLogin) error {
	if state == "" {
		return autherrors.ErrEmptyKey
	}
	if pending == nil {
		return autherrors.ErrNilValue
	}
	b, err := json.Marshal(pending)
	if err != nil {
		return autherrors.Wrapf(err, "[authflowrepo Upsert] marshal")
	}
	return autherrors.Wrapf(r.kv.Set(ctx, r.StateKey(state), b, r.ttl), "[authflowrepo Upsert] store")
}

// Consume retrieves and removes a pending login in one step
func (r *KVRepo) Consume(ctx context.Context, state string) (*PendingLogin, error) {
	if state == "" {
		return nil, autherrors.ErrEmptyKey
	}
	b, ok, err := r.kv.Take(ctx, r.StateKey(state))
	if err != nil {
		return nil, autherrors.Wrapf(err, "[authflowrepo Consume] store")
	}
	if !ok {
		return nil, autherrors.ErrNotFound
	}

	var pending PendingLogin
	if err := json.Unmarshal(b, &pending); err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable pending login")
		return nil, autherrors.ErrNotFound
	}
	return &pending, nil
}

func (r *KVRepo) SetMarker(ctx context.Context) error {
	return r.kv.Set(ctx, r.namespace+markerKey, []byte("1"), r.ttl)
}

func (r *KVRepo) ClearMarker(ctx context.Context) error {
	return r.kv.Del(ctx, r.namespace+markerKey)
}

func (r *KVRepo) HasMarker(ctx context.Context) (bool, error) {
	_, ok, err := r.kv.Get(ctx, r.namespace+markerKey)
	return ok, err
}
