package cachekit

import (
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/cachekit/codec"
	"github.com/unkn0wn-root/cachekit/keygen"
)

// Adapters, func-backed handlers and generators may hold non-comparable
// dynamic types, so defaults are applied with nil checks rather than ==.

func loggerOrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

func handlerOr(h ErrorHandler, log Logger) ErrorHandler {
	if h == nil {
		return LogErrorHandler{Logger: log}
	}
	return h
}

func keyGenOrDefault(g keygen.Generator) keygen.Generator {
	if g == nil {
		return keygen.New()
	}
	return g
}

func codecOrTyped(c codec.Codec[any]) codec.Codec[any] {
	if c == nil {
		return codec.MustTyped()
	}
	return c
}

// registerTypes registers the dynamic type of each sample with c's registry.
func registerTypes(c codec.Codec[any], samples []any) error {
	if len(samples) == 0 {
		return nil
	}
	rc, ok := c.(interface{ Registry() *codec.Registry })
	if !ok || rc.Registry() == nil {
		return errors.Newf("cachekit: Types needs a codec with a type registry, have %s", codec.NameOf(c))
	}
	for i, s := range samples {
		if s == nil {
			return errors.Newf("cachekit: Types[%d] is untyped nil", i)
		}
		if _, err := rc.Registry().RegisterType(reflect.TypeOf(s)); err != nil {
			return err
		}
	}
	return nil
}

func unitCost(string, []byte) int64 { return 1 }
