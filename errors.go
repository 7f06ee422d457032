package cachekit

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/cachekit/codec"
	"github.com/unkn0wn-root/cachekit/keygen"
	"github.com/unkn0wn-root/cachekit/ttl"
)

type (
	SerializationError = codec.SerializationError
	ConfigurationError = ttl.ConfigError
)

var (
	ErrInvalidArgument = keygen.ErrInvalidArgument
	ErrNilValue        = errors.New("cachekit: nil value")
	ErrUnsupported     = errors.New("cachekit: operation not supported by provider")
)

// StoreError wraps a provider failure with the operation that hit it.
type StoreError struct {
	Op        Op
	Namespace string
	Key       string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cachekit: %s %q in %q: %v", e.Op, e.Key, e.Namespace, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
