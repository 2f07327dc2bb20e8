package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCache_SetGetDelete(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewReadCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "asset:a", []byte(`{"name":"A"}`), time.Minute))
	require.NoError(t, cache.Set(ctx, "history:a:0:2", []byte(`[]`), 0))

	got, err := cache.Get(ctx, "asset:a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"name":"A"}`), got)
	assert.Equal(t, time.Minute, s.TTL("cache:asset:a"))
	assert.Zero(t, s.TTL("cache:history:a:0:2"), "zero ttl keeps the key")

	require.NoError(t, cache.Delete(ctx, "asset:a", "missing"))
	got, err = cache.Get(ctx, "asset:a")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, cache.Delete(ctx))
}
