package codec

import (
	"encoding/json"
	"fmt"
)

// JSON encodes a single static type with encoding/json. No type tags are
// written, so decoding into an interface type yields generic maps and slices.
type JSON[V any] struct{}

func (JSON[V]) Name() string { return "json" }

func (JSON[V]) Encode(v V) ([]byte, error) {
	b, err := json.Marshal(v)
	return b, serr("encode", fmt.Sprintf("%T", v), "$", err)
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, serr("decode", fmt.Sprintf("%T", v), "$", err)
}
