package codec

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrCycle is returned when a value graph refers back to itself.
	ErrCycle = errors.New("cyclic value graph")
	// ErrUnsupportedType marks kinds that have no structural form (func, chan, unsafe.Pointer).
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrUnknownTag marks a tag naming no registered type. Outside strict mode
	// such payloads decode to Unknown instead.
	ErrUnknownTag = errors.New("unknown type tag")
	// ErrTagConflict is returned when a tag is already bound to another type.
	ErrTagConflict = errors.New("type tag conflict")
	// ErrTagNotAllowed is returned when a payload names a type outside the allow-list.
	ErrTagNotAllowed = errors.New("type tag not allowed")
	// ErrMalformed marks payloads that do not match the envelope layout.
	ErrMalformed = errors.New("malformed payload")
	// ErrTooLarge is returned by LimitCodec for oversized payloads.
	ErrTooLarge = errors.New("payload too large")
)

// SerializationError reports a value that could not be encoded or a payload
// that could not be decoded. It is fatal to the single operation only.
type SerializationError struct {
	Op   string // "encode" or "decode"
	Type string // Go type or type tag involved, if known
	Path string // location inside the value, e.g. $.Items[2]
	Err  error
}

func (e *SerializationError) Error() string {
	msg := "codec: " + e.Op
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Path != "" && e.Path != "$" {
		msg += " at " + e.Path
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// serr wraps err unless it already is a *SerializationError.
func serr(op, typ, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *SerializationError
	if errors.As(err, &se) {
		return err
	}
	return &SerializationError{Op: op, Type: typ, Path: path, Err: err}
}
