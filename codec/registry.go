package codec

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps type tags to Go types and back.
//
// Named types get the tag "<pkgpath>.<Name>", predeclared types their Go name,
// and composites are spelled recursively ("*T", "[]T", "[4]T", "map[K]V"), so
// a composite of registered types never needs its own registration.
//
// A reader can only rebuild a type it has seen. Encoding registers types as a
// side effect, but a process that reads before it writes (after a restart, or
// a different service sharing the store) must register the types it expects
// up front with Register, RegisterType or WithTypes; otherwise their payloads
// decode to Unknown. RegisterName binds an additional alias, e.g. a tag
// written by another service. Registration also marks a type as explicitly
// known, which Strict requires.
//
// A Registry is safe for concurrent use.
type Registry struct {
	byTag  *xsync.MapOf[string, entry]
	byType *xsync.MapOf[reflect.Type, string]
}

type entry struct {
	typ      reflect.Type
	explicit bool
	builtin  bool
}

var builtinTypes = []reflect.Type{
	reflect.TypeOf(false),
	reflect.TypeOf(int(0)),
	reflect.TypeOf(int8(0)),
	reflect.TypeOf(int16(0)),
	reflect.TypeOf(int32(0)),
	reflect.TypeOf(int64(0)),
	reflect.TypeOf(uint(0)),
	reflect.TypeOf(uint8(0)),
	reflect.TypeOf(uint16(0)),
	reflect.TypeOf(uint32(0)),
	reflect.TypeOf(uint64(0)),
	reflect.TypeOf(uintptr(0)),
	reflect.TypeOf(float32(0)),
	reflect.TypeOf(float64(0)),
	reflect.TypeOf(complex64(0)),
	reflect.TypeOf(complex128(0)),
	reflect.TypeOf(""),
	anyType,
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// maxArrayLen bounds array lengths read from tags.
const maxArrayLen = 1 << 16

func NewRegistry() *Registry {
	r := &Registry{
		byTag:  xsync.NewMapOf[string, entry](),
		byType: xsync.NewMapOf[reflect.Type, string](),
	}
	for _, t := range builtinTypes {
		r.byTag.Store(t.String(), entry{typ: t, explicit: true, builtin: true})
	}
	return r
}

// Register marks T as explicitly known and returns its tag.
func Register[T any](r *Registry) (string, error) {
	return r.RegisterType(reflect.TypeOf((*T)(nil)).Elem())
}

// RegisterType marks t, and the named types a composite t is built from, as
// explicitly known. It fails if t's tag is already bound to another type.
func (r *Registry) RegisterType(t reflect.Type) (string, error) {
	if t == nil {
		return "", errors.New("codec: register nil type")
	}
	if isComposite(t) {
		if t.Kind() == reflect.Map {
			if _, err := r.RegisterType(t.Key()); err != nil {
				return "", err
			}
		}
		if _, err := r.RegisterType(t.Elem()); err != nil {
			return "", err
		}
		return r.Tag(t)
	}
	if tag, ok := r.byType.Load(t); ok {
		if e, ok := r.byTag.Load(tag); ok && !e.explicit {
			r.byTag.Store(tag, entry{typ: t, explicit: true})
		}
		return tag, nil
	}
	tag, err := r.defaultTag(t)
	if err != nil {
		return "", err
	}
	if err := r.bind(tag, t, true); err != nil {
		return "", err
	}
	r.byType.Store(t, tag)
	return tag, nil
}

// RegisterName binds tag to T in addition to T's default tag and makes it the
// tag written on encode. It fails if either tag is already bound to another
// type.
func RegisterName[T any](r *Registry, tag string) error {
	if tag == "" {
		return errors.New("codec: empty type tag")
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	if !isComposite(t) {
		def, err := r.defaultTag(t)
		if err != nil {
			return err
		}
		if err := r.bind(def, t, true); err != nil {
			return err
		}
	}
	if err := r.bind(tag, t, true); err != nil {
		return err
	}
	r.byType.Store(t, tag)
	return nil
}

// bind associates tag with t, upgrading an implicit binding to explicit.
func (r *Registry) bind(tag string, t reflect.Type, explicit bool) error {
	prev, loaded := r.byTag.LoadOrStore(tag, entry{typ: t, explicit: explicit})
	if !loaded {
		return nil
	}
	if prev.typ != t {
		return errors.Wrapf(ErrTagConflict, "%q bound to %s, not %s", tag, prev.typ, t)
	}
	if explicit && !prev.explicit && !prev.builtin {
		r.byTag.Store(tag, entry{typ: t, explicit: true})
	}
	return nil
}

// Tag returns the tag written for t, registering t on first use. Two types
// sharing a name and package (declared in different functions) cannot both be
// bound; the second yields ErrTagConflict.
func (r *Registry) Tag(t reflect.Type) (string, error) {
	if tag, ok := r.byType.Load(t); ok {
		return tag, nil
	}
	tag, err := r.defaultTag(t)
	if err != nil {
		return "", err
	}
	if isComposite(t) {
		// spelled from its components on every call so aliases stay current
		return tag, nil
	}
	if err := r.bind(tag, t, false); err != nil {
		return "", err
	}
	r.byType.Store(t, tag)
	return tag, nil
}

func isComposite(t reflect.Type) bool {
	if t.Name() != "" {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

func (r *Registry) defaultTag(t reflect.Type) (string, error) {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name(), nil
		}
		return t.PkgPath() + "." + t.Name(), nil
	}
	var prefix string
	switch t.Kind() {
	case reflect.Pointer:
		prefix = "*"
	case reflect.Slice:
		prefix = "[]"
	case reflect.Array:
		prefix = "[" + strconv.Itoa(t.Len()) + "]"
	case reflect.Map:
		k, err := r.Tag(t.Key())
		if err != nil {
			return "", err
		}
		prefix = "map[" + k + "]"
	default:
		// anonymous structs, interfaces, funcs
		return t.String(), nil
	}
	elem, err := r.Tag(t.Elem())
	if err != nil {
		return "", err
	}
	return prefix + elem, nil
}

// Lookup resolves tag to a Go type.
func (r *Registry) Lookup(tag string) (reflect.Type, bool) {
	t, err := r.resolve(tag, nil)
	return t, err == nil
}

// resolve parses tag, calling check for every named component it binds.
// Tags that do not parse as a composite are unknown, not malformed: other
// writers use bracketed names of their own, e.g. "[Ljava.lang.String;".
func (r *Registry) resolve(tag string, check func(tag string, explicit bool) error) (reflect.Type, error) {
	if e, ok := r.byTag.Load(tag); ok {
		if check != nil && !e.builtin {
			if err := check(tag, e.explicit); err != nil {
				return nil, err
			}
		}
		return e.typ, nil
	}
	unknown := errors.Wrapf(ErrUnknownTag, "%q", tag)

	switch {
	case strings.HasPrefix(tag, "*"):
		elem, err := r.resolve(tag[1:], check)
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(elem), nil

	case strings.HasPrefix(tag, "[]"):
		elem, err := r.resolve(tag[2:], check)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil

	case strings.HasPrefix(tag, "map["):
		end := closingBracket(tag, len("map["))
		if end < 0 {
			return nil, unknown
		}
		key, err := r.resolve(tag[len("map["):end], check)
		if err != nil {
			return nil, err
		}
		if !key.Comparable() {
			return nil, unknown
		}
		elem, err := r.resolve(tag[end+1:], check)
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(key, elem), nil

	case strings.HasPrefix(tag, "["):
		end := strings.IndexByte(tag, ']')
		if end < 0 {
			return nil, unknown
		}
		n, err := strconv.Atoi(tag[1:end])
		if err != nil || n < 0 || n > maxArrayLen {
			return nil, unknown
		}
		elem, err := r.resolve(tag[end+1:], check)
		if err != nil {
			return nil, err
		}
		return reflect.ArrayOf(n, elem), nil
	}

	return nil, unknown
}

// closingBracket returns the index of the ']' that closes the bracket opened
// just before start, or -1.
func closingBracket(s string, start int) int {
	depth := 1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
