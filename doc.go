// Package cachekit is a caching layer in front of a key-value store.
//
// A Manager derives the entry key from a call-site identity and its
// arguments (package keygen), applies a per-namespace TTL (package ttl) and
// stores values through a type-preserving codec (package codec), so a value
// read back has the same concrete Go type that was written.
//
// Components:
//   - Provider: byte store with TTL (Redis, Ristretto, BigCache).
//   - Codec[any]: value <-> []byte. Default codec.Typed over JSON.
//   - keygen.Generator: identity + args -> key.
//   - ttl.Policy: default TTL plus per-namespace overrides.
//   - ErrorHandler: receives read and store failures, which never reach callers.
//
// Keys:
//
//	<prefix><namespace>::<key>
//
// Usage:
//
//	m, _ := cachekit.New(cachekit.Options{
//		Provider:   rp,
//		DefaultTTL: 0,
//		Expires:    map[string]any{"userCache": 300},
//	})
//	id := "com.app.UserService.findById"
//	if u, ok := cachekit.GetAs[User](ctx, m, "userCache", id, []any{42}); ok {
//		return u
//	}
//	_ = m.Put(ctx, "userCache", id, []any{42}, u)
package cachekit
