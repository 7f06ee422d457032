package ristretto

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	rc "github.com/dgraph-io/ristretto"
	"github.com/puzpuzpuz/xsync/v3"

	pr "github.com/unkn0wn-root/cachekit/provider"
)

// Provider is an in-process tier on Ristretto.
//
// Ristretto only keeps key hashes, so the provider tracks written keys (and
// their cost) in a side index to serve DelPrefix and Expire. Index entries of
// keys Ristretto evicted on its own are dropped lazily.
type Provider struct {
	c      *rc.Cache
	keys   *xsync.MapOf[string, int64]
	closed atomic.Bool
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Keyspace = (*Provider)(nil)
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost in Ristretto is provided by the caller (cachekit passes cost per Set).
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, keys: xsync.NewMapOf[string, int64]()}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	if p.closed.Load() {
		return nil, false, pr.ErrClosed
	}
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		p.keys.Delete(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set is asynchronous: the value becomes visible once Ristretto drains its
// buffers. ok=false when the write was dropped by admission.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if p.closed.Load() {
		return false, pr.ErrClosed
	}
	if ttl < 0 {
		ttl = 0
	}
	ok := p.c.SetWithTTL(key, value, cost, ttl)
	if ok {
		p.keys.Store(key, cost)
	}
	return ok, nil
}

func (p *Provider) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		p.c.Del(k)
		p.keys.Delete(k)
	}
	return nil
}

func (p *Provider) Exists(_ context.Context, key string) (bool, error) {
	_, ok := p.c.Get(key)
	return ok, nil
}

// Expire rewrites the entry with the new TTL.
func (p *Provider) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return false, nil
	}
	if ttl < 0 {
		ttl = 0
	}
	cost, _ := p.keys.Load(key)
	if cost == 0 {
		cost = 1
	}
	return p.c.SetWithTTL(key, v, cost, ttl), nil
}

func (p *Provider) TTL(_ context.Context, key string) (time.Duration, error) {
	d, ok := p.c.GetTTL(key)
	if !ok {
		return 0, pr.ErrNotFound
	}
	if d == 0 {
		return pr.NoExpiry, nil
	}
	return d, nil
}

func (p *Provider) DelPrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	p.keys.Range(func(k string, _ int64) bool {
		if !strings.HasPrefix(k, prefix) {
			return true
		}
		if _, ok := p.c.Get(k); ok {
			n++
		}
		p.c.Del(k)
		p.keys.Delete(k)
		return true
	})
	return n, nil
}

// Wait blocks until buffered writes are applied.
func (p *Provider) Wait() { p.c.Wait() }

func (p *Provider) Close(_ context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes Ristretto counters; nil unless Config.Metrics was set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
