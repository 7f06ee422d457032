package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/cachekit"
	rp "github.com/unkn0wn-root/cachekit/provider/redis"
)

type profile struct {
	Name string
	Age  int
}

const testConfig = `
cache:
  prefix: "app:"
  expiration: 60
  expires:
    userCache: 300
    broken: -1
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cachekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func seed(t *testing.T, mr *miniredis.Miniredis) {
	t.Helper()
	p, err := rp.New(rp.Config{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), CloseClient: true})
	require.NoError(t, err)
	m, err := cachekit.New(cachekit.Options{Provider: p, KeyPrefix: "app:", Expires: map[string]any{"userCache": 300}})
	require.NoError(t, err)
	defer m.Close(context.Background())
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "userCache", "com.app.UserService.findById", []any{42}, profile{Name: "Ann", Age: 30}))
	require.NoError(t, m.Put(ctx, "userCache", "com.app.UserService.findById", []any{43}, "plain"))
}

func TestTTLCommand(t *testing.T) {
	out, errOut, err := run(t, "ttl", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "1m0s")
	assert.Contains(t, out, "userCache")
	assert.Contains(t, out, "5m0s")
	assert.NotContains(t, out, "broken")
	assert.Contains(t, errOut, "broken")

	out, _, err = run(t, "ttl", "--config", writeConfig(t), "orderCache")
	require.NoError(t, err)
	assert.Contains(t, out, "orderCache")
	assert.Contains(t, out, "1m0s")
}

func TestKeyCommand(t *testing.T) {
	out, _, err := run(t, "key", "com.app.UserService.findById", "42")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, _, err = run(t, "key", "com.app.UserService.findById")
	require.NoError(t, err)
	assert.Equal(t, "com.app.UserService:findById\n", out)

	out, _, err = run(t, "key", "--config", writeConfig(t), "--namespace", "userCache", "svc.op", "a:b")
	require.NoError(t, err)
	assert.Equal(t, `app:userCache::a\:b`+"\n", out)

	out, _, err = run(t, "key", "--raw", "svc.op", "a:b")
	require.NoError(t, err)
	assert.Equal(t, "a:b\n", out)
}

func TestGetEvictClearAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	seed(t, mr)
	cfg := writeConfig(t)

	out, _, err := run(t, "get", "--config", cfg, "--redis", mr.Addr(), "userCache", "com.app.UserService.findById", "42")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	// the CLI does not know the writer's types: they come back as tagged generic values
	typ, _ := got["type"].(string)
	assert.True(t, strings.HasSuffix(typ, ".profile"), "type %q", typ)
	assert.Equal(t, map[string]any{"Name": "Ann", "Age": float64(30)}, got["value"])
	assert.Equal(t, "5m0s", got["ttl"])

	out, _, err = run(t, "get", "--config", cfg, "--redis", mr.Addr(), "userCache", "com.app.UserService.findById", "43")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `"plain"`))

	_, _, err = run(t, "evict", "--config", cfg, "--redis", mr.Addr(), "userCache", "com.app.UserService.findById", "42")
	require.NoError(t, err)
	assert.False(t, mr.Exists("app:userCache::42"))

	_, _, err = run(t, "clear", "--config", cfg, "--redis", "redis://"+mr.Addr()+"/0", "userCache")
	require.NoError(t, err)
	assert.False(t, mr.Exists("app:userCache::43"))

	_, _, err = run(t, "get", "--config", cfg, "--redis", mr.Addr(), "userCache", "com.app.UserService.findById", "43")
	assert.ErrorContains(t, err, "miss")
}
