package codec

import "github.com/cockroachdb/errors"

// LimitCodec wraps another codec to enforce a maximum allowed payload size
// at Decode time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized inputs read back from a shared store.
type LimitCodec[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]
	// MaxDecode is the maximum permitted length in bytes of a payload passed
	// to Decode.
	MaxDecode int
}

func (c LimitCodec[V]) Name() string { return "limit+" + NameOf(c.Inner) }

// Registry returns Inner's type registry, or nil if Inner has none.
func (c LimitCodec[V]) Registry() *Registry {
	if rc, ok := any(c.Inner).(interface{ Registry() *Registry }); ok {
		return rc.Registry()
	}
	return nil
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, &SerializationError{
			Op:  "decode",
			Err: errors.Wrapf(ErrTooLarge, "%d > %d", len(b), c.MaxDecode),
		}
	}
	return c.Inner.Decode(b)
}
