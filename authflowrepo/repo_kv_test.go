package authflowrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-social-login/authflowrepo"
	autherrors "github.com/jrsteele09/go-social-login/internal/errors"
	memorystore "github.com/jrsteele09/go-social-login/storage/memory"
	"github.com/stretchr/testify/require"
)

// TestConsume_IsSingleUse tests that a pending login can only be consumed once
func TestConsume_IsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := authflowrepo.NewKVRepo(memorystore.NewKV(), "", time.Minute)

	err := repo.Upsert(ctx, "state-1", &authflowrepo.PendingLogin{
		ProviderID:   "google",
		CodeVerifier: "verifier",
		RedirectURI:  "https://app/cb",
		Scope:        []string{"openid", "email"},
	})
	require.NoError(t, err)

	p, err := repo.Consume(ctx, "state-1")
	require.NoError(t, err)
	require.Equal(t, "google", p.ProviderID)
	require.Equal(t, "verifier", p.CodeVerifier)
	require.Equal(t, []string{"openid", "email"}, p.Scope)

	_, err = repo.Consume(ctx, "state-1")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

// TestConsume_UnknownState tests lookup of a state that was never stored
func TestConsume_UnknownState(t *testing.T) {
	repo := authflowrepo.NewKVRepo(memorystore.NewKV(), "", time.Minute)
	_, err := repo.Consume(context.Background(), "unknown123")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

// TestConsume_CorruptRecord tests that unreadable JSON is treated as absent
func TestConsume_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	kv := memorystore.NewKV()
	repo := authflowrepo.NewKVRepo(kv, "app1:", time.Minute)
	require.NoError(t, kv.Set(ctx, repo.StateKey("s"), []byte("{garbage"), 0))

	_, err := repo.Consume(ctx, "s")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

// TestUpsert_Validation tests argument checks
func TestUpsert_Validation(t *testing.T) {
	repo := authflowrepo.NewKVRepo(memorystore.NewKV(), "", time.Minute)
	require.ErrorIs(t, repo.Upsert(context.Background(), "", &authflowrepo.PendingLogin{}), autherrors.ErrEmptyKey)
	require.ErrorIs(t, repo.Upsert(context.Background(), "s", nil), autherrors.ErrNilValue)
}

// TestMarker tests the in-flight marker lifecycle
func TestMarker(t *testing.T) {
	ctx := context.Background()
	repo := authflowrepo.NewKVRepo(memorystore.NewKV(), "", time.Minute)

	has, err := repo.HasMarker(ctx)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, repo.SetMarker(ctx))
	has, err = repo.HasMarker(ctx)
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, repo.ClearMarker(ctx))
	has, _ = repo.HasMarker(ctx)
	require.False(t, has)
}
