package codec

import (
	"google.golang.org/protobuf/proto"
)

// Protobuf encodes a single generated message type. The constructor supplies a
// fresh message for each Decode, e.g. func() *pb.User { return &pb.User{} }.
type Protobuf[T proto.Message] struct {
	new func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (Protobuf[T]) Name() string { return "protobuf" }

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(v)
	return b, serr("encode", string(v.ProtoReflect().Descriptor().FullName()), "$", err)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, serr("decode", string(m.ProtoReflect().Descriptor().FullName()), "$", err)
}
