// Package codec turns cached values into the byte payloads handed to a provider
// and back.
//
// Plain codecs (JSON, Msgpack, CBOR, Protobuf, Bytes, String) encode a single
// statically known type. Typed encodes heterogeneous values behind `any` and
// embeds a type tag so the concrete Go type survives the round trip.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Named is implemented by codecs that identify themselves in diagnostics.
type Named interface {
	Name() string
}

// NameOf returns c's name, or "custom" when c does not implement Named.
func NameOf(c any) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return "custom"
}
