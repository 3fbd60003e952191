package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisstore "github.com/jrsteele09/go-social-login/storage/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// TestKV_RoundTripAndTake tests Get/Set/Del and the single-use Take
func TestKV_RoundTripAndTake(t *testing.T) {
	ctx := context.Background()
	_, rdb := newClient(t)
	kv := redisstore.NewKV(rdb)

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, "oauth_state_abc", []byte(`{"providerId":"google"}`), time.Minute))
	v, ok, err := kv.Get(ctx, "oauth_state_abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"providerId":"google"}`, string(v))

	v, ok, err = kv.Take(ctx, "oauth_state_abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, v)

	_, ok, err = kv.Take(ctx, "oauth_state_abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, kv.Del(ctx, "k"))
	_, ok, _ = kv.Get(ctx, "k")
	require.False(t, ok)
}

// TestKV_TTL tests that Redis expiry is applied
func TestKV_TTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newClient(t)
	kv := redisstore.NewKV(rdb)

	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)
	_, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

// TestBroadcaster_PubSub tests delivery of a payload published after subscription
func TestBroadcaster_PubSub(t *testing.T) {
	ctx := context.Background()
	_, rdb := newClient(t)
	b := redisstore.NewBroadcaster(rdb)

	sub, err := b.Subscribe(ctx, "oauth-state1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "oauth-state1", []byte(`{"type":"oauth-response"}`)))

	select {
	case got := <-sub.C():
		require.JSONEq(t, `{"type":"oauth-response"}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("no payload received")
	}
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
}
