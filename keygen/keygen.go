// Package keygen derives cache keys from a call-site identity and the
// arguments of the call.
//
// An identity is the fully-qualified name of the operation being cached, e.g.
// "com.app.UserService.findById". With arguments, the key is built from the
// arguments alone; without arguments it is "<category>:<operation>".
//
//	g := keygen.New()
//	g.Generate("com.app.UserService.findById", 42) // "42"
//	g.Generate("com.app.UserService.findById")     // "com.app.UserService:findById"
//
// Keys never include the identity when arguments are present, so two call
// sites caching into the same namespace with equal argument lists share an
// entry. Use distinct namespaces when that is not wanted.
//
// Slices render as "[a,b]", maps as "{k=v}" with sorted pairs and structs as
// "Name{Field=v}" over all fields. Text inside those forms has
// `\ , = [ ] { }` backslash-quoted, and each argument has the separator
// quoted, so distinct argument lists give distinct keys.
package keygen

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// ErrInvalidArgument is returned for an empty identity with no arguments, and
// for arguments that cannot be rendered (reference cycles).
var ErrInvalidArgument = errors.New("keygen: invalid argument")

// Generator derives a cache key. Implementations must be deterministic and
// safe for concurrent use.
type Generator interface {
	Generate(identity string, args ...any) (string, error)
}

// Func adapts a function to Generator.
type Func func(identity string, args ...any) (string, error)

func (f Func) Generate(identity string, args ...any) (string, error) { return f(identity, args...) }

const DefaultSeparator = ":"

type Option func(*Default)

// Raw disables all quoting inside argument representations.
// Keys then match the plain join byte for byte, at the price of
// ("a:b") and ("a", "b") producing the same key.
func Raw() Option { return func(g *Default) { g.raw = true } }

// Separator sets the string placed between arguments and between category
// and operation. Default ":".
func Separator(sep string) Option { return func(g *Default) { g.sep = sep } }

// MaxLen replaces keys longer than n bytes by "h:<xxhash64 hex>". 0 disables.
func MaxLen(n int) Option { return func(g *Default) { g.maxLen = n } }

// Default is the standard Generator.
type Default struct {
	sep    string
	raw    bool
	maxLen int
}

var _ Generator = (*Default)(nil)

func New(opts ...Option) *Default {
	g := &Default{sep: DefaultSeparator}
	for _, o := range opts {
		o(g)
	}
	if g.sep == "" {
		g.sep = DefaultSeparator
	}
	return g
}

func (g *Default) Generate(identity string, args ...any) (string, error) {
	if len(args) == 0 {
		if identity == "" {
			return "", errors.Wrap(ErrInvalidArgument, "empty identity and no arguments")
		}
		return g.limit(g.qualified(identity)), nil
	}

	parts := make([]string, len(args))
	for i, a := range args {
		r := renderer{seen: map[uintptr]struct{}{}, raw: g.raw}
		s, err := r.render(reflect.ValueOf(a))
		if err != nil {
			return "", errors.Wrapf(err, "argument %d", i)
		}
		if !g.raw {
			s = g.escape(s)
		}
		parts[i] = s
	}
	return g.limit(strings.Join(parts, g.sep)), nil
}

// qualified splits identity at its last '.' into category and operation.
func (g *Default) qualified(identity string) string {
	i := strings.LastIndexByte(identity, '.')
	if i < 0 {
		return identity
	}
	return identity[:i] + g.sep + identity[i+1:]
}

func (g *Default) escape(s string) string {
	if !strings.Contains(s, `\`) && !strings.Contains(s, g.sep) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, g.sep, `\`+g.sep)
}

func (g *Default) limit(key string) string {
	if g.maxLen <= 0 || len(key) <= g.maxLen {
		return key
	}
	return "h:" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}

// Identity returns "<pkgpath>.<Type>.<method>" for receiver's dynamic type,
// looking through pointers. A nil receiver yields method unchanged.
func Identity(receiver any, method string) string {
	t := reflect.TypeOf(receiver)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return method
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	if t.PkgPath() != "" {
		name = t.PkgPath() + "." + name
	}
	return name + "." + method
}

var (
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)

// nested quotes the characters composite renderings use as structure.
var nested = strings.NewReplacer(
	`\`, `\\`,
	",", `\,`,
	"=", `\=`,
	"[", `\[`,
	"]", `\]`,
	"{", `\{`,
	"}", `\}`,
)

type renderer struct {
	seen  map[uintptr]struct{}
	raw   bool
	depth int
}

// leaf returns free-form text, quoted when it sits inside a composite.
func (r *renderer) leaf(s string) string {
	if r.raw || r.depth == 0 {
		return s
	}
	return nested.Replace(s)
}

// elem renders v one level deeper.
func (r *renderer) elem(v reflect.Value) (string, error) {
	r.depth++
	defer func() { r.depth-- }()
	return r.render(v)
}

func (r *renderer) render(v reflect.Value) (string, error) {
	if !v.IsValid() {
		return "null", nil
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return "null", nil
	}
	if v.CanInterface() {
		if v.Type().Implements(errorType) {
			return r.leaf(v.Interface().(error).Error()), nil
		}
		if v.Type().Implements(stringerType) {
			return r.leaf(v.Interface().(fmt.Stringer).String()), nil
		}
	}

	switch v.Kind() {
	case reflect.String:
		return r.leaf(v.String()), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case reflect.Complex64, reflect.Complex128:
		return strconv.FormatComplex(v.Complex(), 'g', -1, 128), nil

	case reflect.Interface:
		return r.render(v.Elem())

	case reflect.Pointer:
		p := v.Pointer()
		if _, ok := r.seen[p]; ok {
			return "", errors.Wrapf(ErrInvalidArgument, "reference cycle through %s", v.Type())
		}
		r.seen[p] = struct{}{}
		defer delete(r.seen, p)
		return r.render(v.Elem())

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return "null", nil
		}
		parts := make([]string, v.Len())
		for i := range parts {
			s, err := r.elem(v.Index(i))
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ",") + "]", nil

	case reflect.Map:
		if v.IsNil() {
			return "null", nil
		}
		p := v.Pointer()
		if _, ok := r.seen[p]; ok {
			return "", errors.Wrapf(ErrInvalidArgument, "reference cycle through %s", v.Type())
		}
		r.seen[p] = struct{}{}
		defer delete(r.seen, p)

		pairs := make([]string, 0, v.Len())
		it := v.MapRange()
		for it.Next() {
			k, err := r.elem(it.Key())
			if err != nil {
				return "", err
			}
			val, err := r.elem(it.Value())
			if err != nil {
				return "", err
			}
			pairs = append(pairs, k+"="+val)
		}
		sort.Strings(pairs)
		return "{" + strings.Join(pairs, ",") + "}", nil

	case reflect.Struct:
		t := v.Type()
		parts := make([]string, 0, t.NumField())
		// unexported fields count too: they distinguish otherwise equal values
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			s, err := r.elem(v.Field(i))
			if err != nil {
				return "", err
			}
			parts = append(parts, f.Name+"="+s)
		}
		name := t.Name()
		if name == "" {
			name = "struct"
		} else if !r.raw {
			// instantiated generic names carry brackets and commas
			name = nested.Replace(name)
		}
		return name + "{" + strings.Join(parts, ",") + "}", nil

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%s@%#x", v.Kind(), v.Pointer()), nil
	}
	return r.leaf(fmt.Sprint(v)), nil
}
