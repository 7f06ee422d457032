package cachekit

import "github.com/cockroachdb/errors"

// Op names the Manager operation an error came from.
type Op string

const (
	OpGet   Op = "get"
	OpPut   Op = "put"
	OpEvict Op = "evict"
	OpClear Op = "clear"
)

// ErrorHandler receives failures the Manager does not return to its caller.
// Implementations MUST be cheap and non-blocking; they run on the request path.
// key is the storage key, empty when it could not be derived.
type ErrorHandler interface {
	HandleError(op Op, namespace, key string, err error)
}

type ErrorHandlerFunc func(op Op, namespace, key string, err error)

func (f ErrorHandlerFunc) HandleError(op Op, namespace, key string, err error) {
	f(op, namespace, key, err)
}

type NopErrorHandler struct{}

func (NopErrorHandler) HandleError(Op, string, string, error) {}

// LogErrorHandler logs every failure at Error level.
type LogErrorHandler struct {
	Logger Logger
}

func (h LogErrorHandler) HandleError(op Op, namespace, key string, err error) {
	loggerOrNop(h.Logger).Error("cache "+string(op)+" failed", Fields{
		"op":        string(op),
		"namespace": namespace,
		"key":       key,
		"err":       err,
		"kind":      errorKind(err),
	})
}

func errorKind(err error) string {
	var se *SerializationError
	var ce *ConfigurationError
	var st *StoreError
	switch {
	case errors.As(err, &se):
		return "serialization"
	case errors.As(err, &ce):
		return "configuration"
	case errors.As(err, &st):
		return "store"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	}
	return "unknown"
}
