package cachekit

import (
	"context"
	"time"

	"github.com/unkn0wn-root/cachekit/codec"
	"github.com/unkn0wn-root/cachekit/keygen"
	pr "github.com/unkn0wn-root/cachekit/provider"
	"github.com/unkn0wn-root/cachekit/ttl"
)

// SetCostFunc returns the cost passed to Provider.Set for one entry.
type SetCostFunc func(storageKey string, raw []byte) int64

// Manager caches values per namespace in front of a Provider.
//
// A call site is described by its identity (e.g. "com.app.UserService.findById")
// and its arguments; the Generator turns them into the entry key. Reads never
// fail: store and decode problems are reported to the ErrorHandler and
// surface as a miss.
//
// With the default typed codec a value comes back as its concrete Go type
// only if this process knows the type: it has written one, or the type is
// listed in Options.Types. Entries of unknown types read as codec.Unknown.
type Manager interface {
	Enabled() bool
	Close(context.Context) error

	// Get returns the cached value. A cached nil is (nil, true).
	Get(ctx context.Context, namespace, identity string, args []any) (any, bool)

	// Put stores value with the namespace's TTL. Serialization and key errors
	// are returned; store failures are reported and swallowed.
	Put(ctx context.Context, namespace, identity string, args []any, value any) error

	Evict(ctx context.Context, namespace, identity string, args []any)

	// Clear removes every entry of namespace. Needs a provider implementing
	// provider.PrefixDeleter.
	Clear(ctx context.Context, namespace string)

	// TTL is the expiration applied to writes into namespace. 0 = never.
	TTL(namespace string) time.Duration
}

// Options configure a Manager. Only Provider is required.
type Options struct {
	Provider pr.Provider

	Codec  codec.Codec[any] // nil => codec.Typed over JSON
	KeyGen keygen.Generator // nil => keygen.New()

	// Types lists a sample of every named type this process reads back, e.g.
	// []any{User{}, (*Order)(nil)}. They are registered with the codec's
	// registry so entries written by other processes decode to their Go type
	// instead of codec.Unknown. Requires a codec with a registry (Typed).
	Types []any

	// Policy wins over DefaultTTL/Expires when set.
	Policy     *ttl.Policy
	DefaultTTL time.Duration  // must be >= 0; 0 => entries never expire
	Expires    map[string]any // namespace => TTL, see ttl.BuildOverrides

	KeyPrefix string // prepended to "<namespace>::<key>"

	Logger         Logger       // nil => NopLogger
	ErrorHandler   ErrorHandler // nil => LogErrorHandler over Logger
	ComputeSetCost SetCostFunc  // nil => 1

	Disabled  bool          // every read misses, every write is dropped
	RejectNil bool          // Put(nil) returns ErrNilValue instead of caching nil
	OpTimeout time.Duration // per provider call; 0 => caller's context only
}

func New(opts Options) (Manager, error) {
	return newManager(opts)
}

// GetAs is Get with a type assertion. A value of another type is a miss.
func GetAs[T any](ctx context.Context, m Manager, namespace, identity string, args []any) (T, bool) {
	var zero T
	v, ok := m.Get(ctx, namespace, identity, args)
	if !ok {
		return zero, false
	}
	if v == nil {
		return zero, true
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors from load are returned and nothing is cached. A failed Put is
// returned alongside the loaded value.
func GetOrLoad[T any](ctx context.Context, m Manager, namespace, identity string, args []any, load func(context.Context) (T, error)) (T, error) {
	if v, ok := GetAs[T](ctx, m, namespace, identity, args); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	return v, m.Put(ctx, namespace, identity, args, v)
}
