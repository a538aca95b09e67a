package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/betting-ledger/internal/cache"
	"github.com/josh-kwaku/betting-ledger/internal/testutil"
)

func TestIdempotencyStore(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := cache.NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()
	user := uuid.New()
	redisKey := "idempotency:" + user.String() + ":k1"

	got, err := store.Get(ctx, "k1", user)
	require.NoError(t, err)
	assert.Nil(t, got)

	held, err := store.Reserve(ctx, "k1", user, "abc")
	require.NoError(t, err)
	assert.Nil(t, held, "first reservation owns the key")

	held, err = store.Reserve(ctx, "k1", user, "abc")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.True(t, held.InFlight)
	assert.Equal(t, "abc", held.RequestHash)

	ttl, err := client.TTL(ctx, redisKey).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 2*time.Minute)

	require.NoError(t, store.Complete(ctx, &cache.IdempotencyEntry{
		Key:          "k1",
		UserID:       user,
		RequestHash:  "abc",
		StatusCode:   201,
		ResponseBody: []byte(`{"data":{"id":"1"}}`),
		CreatedAt:    time.Now().UTC(),
	}))

	got, err = store.Reserve(ctx, "k1", user, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.InFlight)
	assert.Equal(t, 201, got.StatusCode)
	assert.JSONEq(t, `{"data":{"id":"1"}}`, string(got.ResponseBody))

	other, err := store.Reserve(ctx, "k1", uuid.New(), "abc")
	require.NoError(t, err)
	assert.Nil(t, other, "keys are scoped per user")

	ttl, err = client.TTL(ctx, redisKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestIdempotencyStore_Release(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := cache.NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()
	user := uuid.New()

	held, err := store.Reserve(ctx, "k2", user, "abc")
	require.NoError(t, err)
	require.Nil(t, held)

	require.NoError(t, store.Release(ctx, "k2", user))

	held, err = store.Reserve(ctx, "k2", user, "def")
	require.NoError(t, err)
	assert.Nil(t, held, "released key can be reserved again")
}

func TestIdempotencyStore_ConcurrentReserve(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := cache.NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()
	user := uuid.New()

	const n = 10
	var owners atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held, err := store.Reserve(ctx, "k3", user, "abc")
			if err == nil && held == nil {
				owners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), owners.Load())
}

func TestPinger(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	require.NoError(t, cache.Pinger{Client: client}.Ping(context.Background()))
}
