package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, ttl), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, Session{
		ID:         "s1",
		PromptName: "Hitesh",
		History:    History{{Role: RoleSystem, Content: "sys"}},
	}))
	assert.True(t, mr.Exists("chatrelay:session:s1"))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Hitesh", got.PromptName)

	next := append(got.History, Message{Role: RoleUser, Content: "hi"}, Message{Role: RoleAssistant, Content: "yo"})
	require.NoError(t, store.Update(ctx, "s1", next))

	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.History, 3)
	assert.Equal(t, "yo", got.History[2].Content)
}

func TestRedisStore_CreateIsExclusive(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, Session{ID: "s1"}))
	assert.Error(t, store.Create(ctx, Session{ID: "s1"}))
	assert.Error(t, store.Create(ctx, Session{}))
}

func TestRedisStore_NotFound(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, "missing", History{}), ErrNotFound)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, Session{ID: "s1"}))
	assert.Equal(t, time.Minute, mr.TTL("chatrelay:session:s1"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
