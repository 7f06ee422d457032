package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/cachekit/provider"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	p, err := New(Config{Client: client, CloseClient: true, ScanCount: 2})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, p.Close(context.Background())) })
	return mr, p
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestGetSetDel(t *testing.T) {
	_, p := newTestRedis(t)
	ctx := context.Background()

	b, ok, err := p.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)

	ok, err = p.Set(ctx, "k", []byte("v"), 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	b, ok, err = p.Get(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	_, _ = p.Set(ctx, "k2", []byte("v2"), 1, 0)
	require.NoError(t, p.Del(ctx, "k", "k2", "missing"))
	_, ok, _ = p.Get(ctx, "k2")
	assert.False(t, ok)
	assert.NoError(t, p.Del(ctx))
}

func TestSetTTLExpires(t *testing.T) {
	mr, p := newTestRedis(t)
	ctx := context.Background()

	_, err := p.Set(ctx, "k", []byte("v"), 1, 2*time.Second)
	require.NoError(t, err)
	mr.FastForward(3 * time.Second)

	_, ok, err := p.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyspaceTTL(t *testing.T) {
	_, p := newTestRedis(t)
	ctx := context.Background()

	_, _ = p.Set(ctx, "forever", []byte("v"), 1, 0)
	_, _ = p.Set(ctx, "short", []byte("v"), 1, time.Minute)

	d, err := p.TTL(ctx, "forever")
	assert.NoError(t, err)
	assert.Equal(t, pr.NoExpiry, d)

	d, err = p.TTL(ctx, "short")
	assert.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	_, err = p.TTL(ctx, "missing")
	assert.ErrorIs(t, err, pr.ErrNotFound)

	ok, err := p.Exists(ctx, "short")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Expire(ctx, "forever", 30*time.Second)
	assert.NoError(t, err)
	assert.True(t, ok)
	d, _ = p.TTL(ctx, "forever")
	assert.Equal(t, 30*time.Second, d)

	ok, err = p.Expire(ctx, "short", 0)
	assert.NoError(t, err)
	assert.True(t, ok)
	d, _ = p.TTL(ctx, "short")
	assert.Equal(t, pr.NoExpiry, d)

	ok, err = p.Expire(ctx, "missing", time.Second)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDelPrefix(t *testing.T) {
	mr, p := newTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"app:users::1", "app:users::2", "app:users::3", "app:users::4", "app:usersX::1", "app:orders::1"} {
		_, err := p.Set(ctx, k, []byte("v"), 1, 0)
		require.NoError(t, err)
	}

	n, err := p.DelPrefix(ctx, "app:users::")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	assert.False(t, mr.Exists("app:users::1"))
	assert.True(t, mr.Exists("app:usersX::1"))
	assert.True(t, mr.Exists("app:orders::1"))

	n, err = p.DelPrefix(ctx, "nothing::")
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "plain", escapeGlob("plain"))
	assert.Equal(t, `a\*b\?\[c\]\\`, escapeGlob(`a*b?[c]\`))
}

func TestServerErrorsSurface(t *testing.T) {
	mr, p := newTestRedis(t)
	mr.SetError("ERR boom")
	_, _, err := p.Get(context.Background(), "k")
	assert.Error(t, err)
	_, err = p.Set(context.Background(), "k", []byte("v"), 1, 0)
	assert.Error(t, err)
	mr.SetError("")
}
