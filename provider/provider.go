// Package provider defines the storage abstraction used by cachekit.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation).
//
// Important: keys of the form "<prefix><namespace>::" are owned by cachekit.
// Foreign writes under these prefixes are read as cache entries and deleted
// when they fail to decode.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Keyspace.TTL for a missing key.
	ErrNotFound = errors.New("provider: key not found")
	// ErrClosed is returned by in-process providers after Close.
	ErrClosed = errors.New("provider: closed")
)

// NoExpiry is returned by Keyspace.TTL for a key that never expires.
const NoExpiry time.Duration = -1

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL; ttl <= 0 means no expiry.
	// May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// PrefixDeleter is implemented by providers that can drop a whole key range.
type PrefixDeleter interface {
	// DelPrefix removes every key starting with prefix and returns how many.
	DelPrefix(ctx context.Context, prefix string) (int64, error)
}

// Keyspace is implemented by providers that can inspect and sweep keys.
type Keyspace interface {
	PrefixDeleter

	Exists(ctx context.Context, key string) (bool, error)

	// Expire resets the TTL of an existing key; ttl <= 0 removes the expiry.
	// ok=false when key is missing.
	Expire(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)

	// TTL returns the remaining lifetime, NoExpiry, or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
}
