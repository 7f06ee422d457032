package codec

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the structural encoding underneath the type tags.
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	case FormatCBOR:
		return "cbor"
	}
	return "format(" + strconv.Itoa(int(f)) + ")"
}

// Unknown carries a decoded value whose tag names no type known to this
// process. Value holds the payload as generic maps, slices and scalars.
// Encoding an Unknown writes the original tag back unchanged.
type Unknown struct {
	Type  string
	Value any
}

var unknownType = reflect.TypeOf(Unknown{})

// Typed is a Codec[any] that preserves concrete Go types.
//
// Values sitting in an interface-typed position (the top level, an `any`
// field, an element of []any, ...) are written as a two element array
// [tag, payload]. Strings, bools, float64 and nil are written bare. Positions
// whose static type is concrete are written without a tag. All struct fields
// are written, exported or not; a `json:"-"` tag skips a field and
// `json:"name"` renames it.
//
// Types implementing encoding.TextMarshaler, with *T implementing
// encoding.TextUnmarshaler, are written as their text form.
//
// By default any tag is accepted on decode; tags unknown to the registry
// decode to Unknown. A reader that has not yet encoded a type knows it only
// if it was registered, so pass the types a process reads to WithTypes (or
// Register them) at startup. WithAllowList and Strict close the door for
// payloads coming from writers you do not trust.
type Typed struct {
	reg    *Registry
	format Format
	strict bool
	allow  map[string]struct{}
	types  []any

	cborEnc cbor.EncMode
	cborDec cbor.DecMode
}

var _ Codec[any] = (*Typed)(nil)

type TypedOption func(*Typed)

// WithFormat selects the structural encoding. Default FormatJSON.
func WithFormat(f Format) TypedOption { return func(c *Typed) { c.format = f } }

// WithRegistry shares a registry between codecs.
func WithRegistry(r *Registry) TypedOption { return func(c *Typed) { c.reg = r } }

// WithAllowList restricts decoding to the listed tags. Predeclared types and
// composites of allowed types are always accepted.
func WithAllowList(tags ...string) TypedOption {
	return func(c *Typed) {
		if c.allow == nil {
			c.allow = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			c.allow[t] = struct{}{}
		}
	}
}

// Strict rejects tags of types that were not registered with Register,
// RegisterName or WithTypes.
func Strict() TypedOption { return func(c *Typed) { c.strict = true } }

// WithTypes registers the dynamic type of each sample, e.g.
// WithTypes(User{}, (*Order)(nil), []Item(nil)). Composites register the
// named types they are built from.
func WithTypes(samples ...any) TypedOption {
	return func(c *Typed) { c.types = append(c.types, samples...) }
}

func NewTyped(opts ...TypedOption) (*Typed, error) {
	c := &Typed{}
	for _, o := range opts {
		o(c)
	}
	if c.reg == nil {
		c.reg = NewRegistry()
	}
	for i, s := range c.types {
		if s == nil {
			return nil, errors.Newf("codec: WithTypes sample %d is untyped nil", i)
		}
		if _, err := c.reg.RegisterType(reflect.TypeOf(s)); err != nil {
			return nil, err
		}
	}
	c.types = nil
	switch c.format {
	case FormatJSON, FormatMsgpack:
	case FormatCBOR:
		em, dm, err := cborModes(true)
		if err != nil {
			return nil, err
		}
		c.cborEnc, c.cborDec = em, dm
	default:
		return nil, errors.Newf("codec: unknown format %d", int(c.format))
	}
	return c, nil
}

// MustTyped is like NewTyped but panics on error.
func MustTyped(opts ...TypedOption) *Typed {
	c, err := NewTyped(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Typed) Name() string { return "typed+" + c.format.String() }

// Registry returns the registry used for tags.
func (c *Typed) Registry() *Registry { return c.reg }

func (c *Typed) Encode(v any) ([]byte, error) {
	e := encoder{reg: c.reg, seen: make(map[visit]struct{})}
	tree, err := e.tagged(reflect.ValueOf(v), "$")
	if err != nil {
		return nil, serr("encode", fmt.Sprintf("%T", v), "$", err)
	}
	b, err := c.marshal(tree)
	if err != nil {
		return nil, serr("encode", fmt.Sprintf("%T", v), "$", err)
	}
	return b, nil
}

func (c *Typed) Decode(b []byte) (any, error) {
	tree, err := c.unmarshal(b)
	if err != nil {
		return nil, serr("decode", "", "$", errors.Mark(err, ErrMalformed))
	}
	d := decoder{c: c}
	v, err := d.dynamic(tree, "$")
	if err != nil {
		return nil, serr("decode", "", "$", err)
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

func (c *Typed) marshal(tree any) ([]byte, error) {
	switch c.format {
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(tree); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatCBOR:
		return c.cborEnc.Marshal(tree)
	}
	return json.Marshal(tree)
}

func (c *Typed) unmarshal(b []byte) (any, error) {
	var tree any
	switch c.format {
	case FormatMsgpack:
		err := msgpack.Unmarshal(b, &tree)
		return tree, err
	case FormatCBOR:
		err := c.cborDec.Unmarshal(b, &tree)
		return tree, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after envelope")
	}
	return tree, nil
}

// checkTag enforces the allow-list and strict mode for a named tag.
func (c *Typed) checkTag(tag string, explicit bool) error {
	if c.allow != nil {
		if _, ok := c.allow[tag]; !ok {
			return errors.Wrapf(ErrTagNotAllowed, "%q", tag)
		}
	}
	if c.strict && !explicit {
		return errors.Wrapf(ErrUnknownTag, "%q", tag)
	}
	return nil
}

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func isText(t reflect.Type) bool {
	return t.Kind() != reflect.Interface && t.Kind() != reflect.Pointer &&
		t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType)
}

// natural types are written without a tag; every format reads them back as
// the same Go type.
func isNatural(t reflect.Type) bool {
	switch t {
	case reflect.TypeOf(""), reflect.TypeOf(false), reflect.TypeOf(float64(0)):
		return true
	}
	return false
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

type encoder struct {
	reg  *Registry
	seen map[visit]struct{}
}

// tagged encodes v as the dynamic content of an interface-typed position.
func (e *encoder) tagged(v reflect.Value, path string) (any, error) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, nil
	}
	t := v.Type()
	if isNatural(t) {
		return e.value(v, path)
	}
	if t == unknownType {
		u := v.Interface().(Unknown)
		return []any{u.Type, u.Value}, nil
	}
	payload, err := e.value(v, path)
	if err != nil {
		return nil, err
	}
	tag, err := e.reg.Tag(t)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return []any{tag, payload}, nil
}

// value encodes v whose static type is known to the reader.
func (e *encoder) value(v reflect.Value, path string) (any, error) {
	t := v.Type()
	if isText(t) {
		b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", path, t)
		}
		return string(b), nil
	}

	switch t.Kind() {
	case reflect.Interface:
		return e.tagged(v, path)
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.Wrapf(ErrUnsupportedType, "%s: non-finite float", path)
		}
		return f, nil
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		return []any{real(c), imag(c)}, nil
	case reflect.String:
		return v.String(), nil

	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		leave, err := e.enter(v, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return e.value(v.Elem(), path)

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if t.Elem().Kind() == reflect.Uint8 && !isText(t.Elem()) {
			return append([]byte(nil), v.Bytes()...), nil
		}
		if v.Len() > 0 {
			leave, err := e.enter(v, path)
			if err != nil {
				return nil, err
			}
			defer leave()
		}
		return e.list(v, path)

	case reflect.Array:
		return e.list(v, path)

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		leave, err := e.enter(v, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return e.mapping(v, path)

	case reflect.Struct:
		return e.structure(v, path)
	}

	return nil, errors.Wrapf(ErrUnsupportedType, "%s: %s", path, t)
}

// enter records a reference on the current path and fails if it is already there.
func (e *encoder) enter(v reflect.Value, path string) (func(), error) {
	k := visit{ptr: v.Pointer(), typ: v.Type()}
	if _, ok := e.seen[k]; ok {
		return nil, errors.Wrapf(ErrCycle, "%s: %s", path, v.Type())
	}
	e.seen[k] = struct{}{}
	return func() { delete(e.seen, k) }, nil
}

func (e *encoder) list(v reflect.Value, path string) (any, error) {
	out := make([]any, v.Len())
	for i := range out {
		x, err := e.value(v.Index(i), path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// mapping writes string-keyed maps as objects and any other key type as a
// list of [key, value] pairs sorted by encoded key.
func (e *encoder) mapping(v reflect.Value, path string) (any, error) {
	t := v.Type()
	if t.Key().Kind() == reflect.String && !isText(t.Key()) {
		out := make(map[string]any, v.Len())
		it := v.MapRange()
		for it.Next() {
			k := it.Key().String()
			x, err := e.value(it.Value(), path+"["+strconv.Quote(k)+"]")
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	}

	type pair struct {
		sortKey string
		kv      []any
	}
	pairs := make([]pair, 0, v.Len())
	it := v.MapRange()
	for it.Next() {
		k, err := e.value(it.Key(), path+"[key]")
		if err != nil {
			return nil, err
		}
		x, err := e.value(it.Value(), path+"["+fmt.Sprint(k)+"]")
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{sortKey: fmt.Sprint(k), kv: []any{k, x}})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].sortKey < pairs[j].sortKey })
	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = p.kv
	}
	return out, nil
}

func (e *encoder) structure(v reflect.Value, path string) (any, error) {
	v = addressable(v)
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, ok := fieldName(t.Field(i))
		if !ok {
			continue
		}
		x, err := e.value(exposed(v.Field(i)), path+"."+name)
		if err != nil {
			return nil, err
		}
		out[name] = x
	}
	return out, nil
}

func fieldName(f reflect.StructField) (string, bool) {
	if f.Name == "_" {
		return "", false
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if i := indexComma(tag); i >= 0 {
		tag = tag[:i]
	}
	if tag != "" {
		return tag, true
	}
	return f.Name, true
}

func indexComma(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			return i
		}
	}
	return -1
}

// addressable returns v itself when addressable, else an addressable copy.
// v must not carry the read-only flag of an unexported field.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

// exposed lifts the read-only flag reflect puts on unexported fields so
// they can be read and written like exported ones. f must be addressable.
func exposed(f reflect.Value) reflect.Value {
	if f.CanInterface() && f.CanSet() {
		return f
	}
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
}

type decoder struct {
	c *Typed
}

// dynamic decodes an interface-typed position and returns the concrete value,
// or an invalid Value for nil.
func (d *decoder) dynamic(node any, path string) (reflect.Value, error) {
	switch n := node.(type) {
	case nil:
		return reflect.Value{}, nil
	case string:
		return reflect.ValueOf(n), nil
	case bool:
		return reflect.ValueOf(n), nil
	case []any:
		return d.envelope(n, path)
	}
	if f, ok := toFloat(node); ok {
		return reflect.ValueOf(f), nil
	}
	return reflect.Value{}, errors.Wrapf(ErrMalformed, "%s: untagged %T", path, node)
}

func (d *decoder) envelope(n []any, path string) (reflect.Value, error) {
	if len(n) != 2 {
		return reflect.Value{}, errors.Wrapf(ErrMalformed, "%s: envelope has %d elements", path, len(n))
	}
	tag, ok := n[0].(string)
	if !ok || tag == "" {
		return reflect.Value{}, errors.Wrapf(ErrMalformed, "%s: envelope tag is %T", path, n[0])
	}

	t, err := d.c.reg.resolve(tag, d.c.checkTag)
	if err != nil {
		if !errors.Is(err, ErrUnknownTag) || d.c.strict {
			return reflect.Value{}, errors.Wrapf(err, "%s", path)
		}
		if d.c.allow != nil {
			if _, ok := d.c.allow[tag]; !ok {
				return reflect.Value{}, errors.Wrapf(ErrTagNotAllowed, "%s: %q", path, tag)
			}
		}
		return reflect.ValueOf(Unknown{Type: tag, Value: generic(n[1])}), nil
	}

	out := reflect.New(t).Elem()
	if err := d.into(out, n[1], path); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

// into decodes node into dst, which must be settable.
func (d *decoder) into(dst reflect.Value, node any, path string) error {
	t := dst.Type()
	if node == nil {
		dst.Set(reflect.Zero(t))
		return nil
	}

	if isText(t) {
		s, ok := node.(string)
		if !ok {
			return mismatch(path, t, node)
		}
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return errors.Wrapf(err, "%s: %s", path, t)
		}
		dst.Set(p.Elem())
		return nil
	}

	switch t.Kind() {
	case reflect.Interface:
		v, err := d.dynamic(node, path)
		if err != nil {
			return err
		}
		if !v.IsValid() {
			dst.Set(reflect.Zero(t))
			return nil
		}
		if !v.Type().AssignableTo(t) {
			return errors.Wrapf(ErrMalformed, "%s: %s does not implement %s", path, v.Type(), t)
		}
		dst.Set(v)

	case reflect.Bool:
		b, ok := node.(bool)
		if !ok {
			return mismatch(path, t, node)
		}
		dst.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := toInt(node)
		if !ok || dst.OverflowInt(i) {
			return mismatch(path, t, node)
		}
		dst.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, ok := toUint(node)
		if !ok || dst.OverflowUint(u) {
			return mismatch(path, t, node)
		}
		dst.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, ok := toFloat(node)
		if !ok {
			return mismatch(path, t, node)
		}
		dst.SetFloat(f)

	case reflect.Complex64, reflect.Complex128:
		l, ok := node.([]any)
		if !ok || len(l) != 2 {
			return mismatch(path, t, node)
		}
		re, ok1 := toFloat(l[0])
		im, ok2 := toFloat(l[1])
		if !ok1 || !ok2 {
			return mismatch(path, t, node)
		}
		dst.SetComplex(complex(re, im))

	case reflect.String:
		s, ok := node.(string)
		if !ok {
			return mismatch(path, t, node)
		}
		dst.SetString(s)

	case reflect.Pointer:
		p := reflect.New(t.Elem())
		if err := d.into(p.Elem(), node, path); err != nil {
			return err
		}
		dst.Set(p)

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !isText(t.Elem()) {
			b, err := toBytes(node)
			if err != nil {
				return errors.Wrapf(err, "%s: %s", path, t)
			}
			s := reflect.MakeSlice(t, len(b), len(b))
			reflect.Copy(s, reflect.ValueOf(b))
			dst.Set(s)
			return nil
		}
		l, ok := node.([]any)
		if !ok {
			return mismatch(path, t, node)
		}
		s := reflect.MakeSlice(t, len(l), len(l))
		for i, x := range l {
			if err := d.into(s.Index(i), x, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		dst.Set(s)

	case reflect.Array:
		l, ok := node.([]any)
		if !ok || len(l) != t.Len() {
			return mismatch(path, t, node)
		}
		a := reflect.New(t).Elem()
		for i, x := range l {
			if err := d.into(a.Index(i), x, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		dst.Set(a)

	case reflect.Map:
		return d.mapping(dst, node, path)

	case reflect.Struct:
		m, ok := asMap(node)
		if !ok {
			return mismatch(path, t, node)
		}
		s := reflect.New(t).Elem()
		for i := 0; i < t.NumField(); i++ {
			name, ok := fieldName(t.Field(i))
			if !ok {
				continue
			}
			x, ok := m[name]
			if !ok {
				continue
			}
			if err := d.into(exposed(s.Field(i)), x, path+"."+name); err != nil {
				return err
			}
		}
		dst.Set(s)

	default:
		return errors.Wrapf(ErrUnsupportedType, "%s: %s", path, t)
	}
	return nil
}

func (d *decoder) mapping(dst reflect.Value, node any, path string) error {
	t := dst.Type()
	out := reflect.MakeMap(t)

	if t.Key().Kind() == reflect.String && !isText(t.Key()) {
		m, ok := asMap(node)
		if !ok {
			return mismatch(path, t, node)
		}
		for k, x := range m {
			val := reflect.New(t.Elem()).Elem()
			if err := d.into(val, x, path+"["+strconv.Quote(k)+"]"); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), val)
		}
		dst.Set(out)
		return nil
	}

	l, ok := node.([]any)
	if !ok {
		return mismatch(path, t, node)
	}
	for i, p := range l {
		kv, ok := p.([]any)
		if !ok || len(kv) != 2 {
			return errors.Wrapf(ErrMalformed, "%s[%d]: map entry", path, i)
		}
		key := reflect.New(t.Key()).Elem()
		if err := d.into(key, kv[0], path+"[key]"); err != nil {
			return err
		}
		val := reflect.New(t.Elem()).Elem()
		if err := d.into(val, kv[1], path+"["+fmt.Sprint(kv[0])+"]"); err != nil {
			return err
		}
		out.SetMapIndex(key, val)
	}
	dst.Set(out)
	return nil
}

func mismatch(path string, t reflect.Type, node any) error {
	return errors.Wrapf(ErrMalformed, "%s: cannot decode %T into %s", path, node, t)
}

func asMap(node any) (map[string]any, bool) {
	switch m := node.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = v
		}
		return out, true
	}
	return nil, false
}

func toBytes(node any) ([]byte, error) {
	switch b := node.(type) {
	case []byte:
		return b, nil
	case string:
		// encoding/json writes []byte as base64
		return base64.StdEncoding.DecodeString(b)
	}
	return nil, errors.Wrapf(ErrMalformed, "bytes from %T", node)
}

func toInt(node any) (int64, bool) {
	switch n := node.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	v := reflect.ValueOf(node)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() > math.MaxInt64 {
			return 0, false
		}
		return int64(v.Uint()), true
	}
	return 0, false
}

func toUint(node any) (uint64, bool) {
	switch n := node.(type) {
	case json.Number:
		u, err := strconv.ParseUint(string(n), 10, 64)
		return u, err == nil
	case float64:
		if n != math.Trunc(n) || n < 0 || n >= math.MaxUint64 {
			return 0, false
		}
		return uint64(n), true
	}
	v := reflect.ValueOf(node)
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Int() < 0 {
			return 0, false
		}
		return uint64(v.Int()), true
	}
	return 0, false
}

func toFloat(node any) (float64, bool) {
	switch n := node.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	v := reflect.ValueOf(node)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	}
	return 0, false
}

// generic normalizes a decoded tree for Unknown.Value: json.Number becomes
// int64 or float64 and every map becomes map[string]any.
func generic(node any) any {
	switch n := node.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return f
	case []any:
		out := make([]any, len(n))
		for i, x := range n {
			out[i] = generic(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, x := range n {
			out[k] = generic(x)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, x := range n {
			out[fmt.Sprint(k)] = generic(x)
		}
		return out
	}
	return node
}
