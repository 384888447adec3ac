package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = client.Close()
		client = nil
	})
	return mr
}

func TestAside_LoadsOnceThenServesFromCache(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	loads := 0
	load := func(dest *cachedUser) func() error {
		return func() error {
			loads++
			*dest = cachedUser{ID: 7, Username: "alice"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &first, UserTTL, load(&first)))
	assert.Equal(t, "alice", first.Username)
	assert.True(t, mr.Exists("user:7"))

	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &second, UserTTL, load(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)
}

func TestAside_LoadErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)
	boom := errors.New("boom")

	var u cachedUser
	err := Aside(context.Background(), UserKey(1), &u, UserTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:1"))
}

func TestAside_ExpiresWithTTL(t *testing.T) {
	mr := withMiniredis(t)
	var u cachedUser
	require.NoError(t, Aside(context.Background(), "k", &u, time.Second, func() error {
		u = cachedUser{ID: 1}
		return nil
	}))
	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists("k"))
}

func TestAside_WithoutClientCallsLoad(t *testing.T) {
	client = nil
	called := false
	var u cachedUser
	require.NoError(t, Aside(context.Background(), "k", &u, time.Second, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestInitRedis_UnreachableLeavesClientNil(t *testing.T) {
	assert.Nil(t, InitRedis("redis://:bad@127.0.0.1:1/0"))
	assert.Nil(t, GetClient())
}
