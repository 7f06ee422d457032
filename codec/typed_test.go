package codec

import (
	"encoding/json"
	"errors"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type account struct {
	id      int64
	owner   *person
	labels  map[string]string
	balance float32
	Extra   any
	Skipped string `json:"-"`
}

type shape interface{ Area() float64 }

type square struct{ Side float64 }

func (s square) Area() float64 { return s.Side * s.Side }

type circle struct{ R float64 }

func (c *circle) Area() float64 { return 3 * c.R * c.R }

type drawing struct {
	Shapes []shape
	ByName map[string]shape
}

type node struct {
	Val  int
	Next *node
}

type status string

type cell struct {
	X, Y int
}

func mustTag(t *testing.T, r *Registry, typ reflect.Type) string {
	t.Helper()
	tag, err := r.Tag(typ)
	if err != nil {
		t.Fatal(err)
	}
	return tag
}

func formats() []Format { return []Format{FormatJSON, FormatMsgpack, FormatCBOR} }

func roundTrip(t *testing.T, c *Typed, v any) any {
	t.Helper()
	b, err := c.Encode(v)
	if err != nil {
		t.Fatalf("%s Encode(%T): %v", c.Name(), v, err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("%s Decode(%T): %v (payload %q)", c.Name(), v, err, b)
	}
	return got
}

func TestTypedRoundTripPreservesConcreteType(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		v    any
	}{
		{"nil", nil},
		{"string", "hello"},
		{"bool", true},
		{"float64", 3.5},
		{"int", 42},
		{"int8", int8(-7)},
		{"uint64 max", uint64(1<<64 - 1)},
		{"named string", status("active")},
		{"struct", person{Name: "Ann", Age: 30}},
		{"pointer", &person{Name: "Bob", Age: 41}},
		{"bytes", []byte{0, 1, 2, 250}},
		{"string slice", []string{"a", "b"}},
		{"struct slice", []person{{Name: "A"}, {Name: "B", Age: 2}}},
		{"array", [3]int{1, 2, 3}},
		{"int map", map[int]string{1: "one", 2: "two"}},
		{"struct keyed map", map[cell]bool{{1, 2}: true, {3, 4}: false}},
		{"complex", complex(1.5, -2)},
		{"time", at},
		{"uuid", id},
		{"ip", net.ParseIP("10.0.0.1")},
		{"duration", 90 * time.Second},
	}
	for _, f := range formats() {
		c := MustTyped(WithFormat(f))
		for _, tc := range cases {
			t.Run(f.String()+"/"+tc.name, func(t *testing.T) {
				got := roundTrip(t, c, tc.v)
				if reflect.TypeOf(got) != reflect.TypeOf(tc.v) {
					t.Fatalf("type: got %T want %T", got, tc.v)
				}
				if tm, ok := tc.v.(time.Time); ok {
					if !got.(time.Time).Equal(tm) {
						t.Fatalf("time: got %v want %v", got, tm)
					}
					return
				}
				if !reflect.DeepEqual(got, tc.v) {
					t.Fatalf("value: got %#v want %#v", got, tc.v)
				}
			})
		}
	}
}

func TestTypedHeterogeneousContainers(t *testing.T) {
	in := []any{
		person{Name: "Ann", Age: 30},
		int64(7),
		"plain",
		map[string]any{
			"nested": []any{uint16(3), &person{Name: "Kid"}},
			"nil":    nil,
		},
		[]int{4, 5},
	}
	for _, f := range formats() {
		c := MustTyped(WithFormat(f))
		got := roundTrip(t, c, in)
		if !reflect.DeepEqual(got, in) {
			t.Fatalf("%s: got %#v want %#v", f, got, in)
		}
	}
}

func TestTypedInterfaceFields(t *testing.T) {
	in := drawing{
		Shapes: []shape{square{Side: 2}, &circle{R: 1}},
		ByName: map[string]shape{"sq": square{Side: 3}},
	}
	c := MustTyped()
	got := roundTrip(t, c, in).(drawing)
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("got %#v want %#v", got, in)
	}
	if _, ok := got.Shapes[1].(*circle); !ok {
		t.Fatalf("pointer receiver type lost: %T", got.Shapes[1])
	}
}

func TestTypedEncodesUnexportedFields(t *testing.T) {
	in := account{
		id:      99,
		owner:   &person{Name: "Ann", Age: 30},
		labels:  map[string]string{"tier": "gold"},
		balance: 12.5,
		Extra:   []any{int32(1), "x"},
		Skipped: "dropped",
	}
	for _, f := range formats() {
		c := MustTyped(WithFormat(f))
		got := roundTrip(t, c, in).(account)
		want := in
		want.Skipped = ""
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %#v want %#v", f, got, want)
		}
	}
}

func TestTypedJSONEnvelopeLayout(t *testing.T) {
	c := MustTyped()
	b, err := c.Encode(person{Name: "Ann", Age: 30})
	if err != nil {
		t.Fatal(err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("envelope is not an array: %s", b)
	}
	if len(raw) != 2 {
		t.Fatalf("envelope len=%d: %s", len(raw), b)
	}
	var tag string
	if err := json.Unmarshal(raw[0], &tag); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(tag, "/codec.person") {
		t.Fatalf("tag=%q", tag)
	}
	if string(raw[1]) != `{"age":30,"name":"Ann"}` {
		t.Fatalf("payload=%s", raw[1])
	}

	// natural values stay bare
	b, _ = c.Encode("Ann")
	if string(b) != `"Ann"` {
		t.Fatalf("string encoded as %s", b)
	}
}

func TestTypedDecodeNotGenericMap(t *testing.T) {
	c := MustTyped()
	b, err := c.Encode(person{Name: "Ann", Age: 30})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if _, isMap := got.(map[string]any); isMap {
		t.Fatalf("decoded into generic map")
	}
	if p, ok := got.(person); !ok || p.Name != "Ann" || p.Age != 30 {
		t.Fatalf("got %#v", got)
	}
}

func TestTypedUnknownTagIsPermissive(t *testing.T) {
	c := MustTyped()
	payload := []byte(`["com.example.Legacy",{"id":7,"tags":["a"]}]`)
	got, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	u, ok := got.(Unknown)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if u.Type != "com.example.Legacy" {
		t.Fatalf("type=%q", u.Type)
	}
	want := map[string]any{"id": int64(7), "tags": []any{"a"}}
	if !reflect.DeepEqual(u.Value, want) {
		t.Fatalf("value=%#v", u.Value)
	}

	// re-encoding keeps the foreign tag
	b, err := c.Encode(u)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), `["com.example.Legacy",`) {
		t.Fatalf("re-encoded as %s", b)
	}
}

func TestTypedAllowListAndStrict(t *testing.T) {
	open := MustTyped()
	b, err := open.Encode(person{Name: "Ann"})
	if err != nil {
		t.Fatal(err)
	}
	tag := mustTag(t, open.Registry(), reflect.TypeOf(person{}))

	deny := MustTyped(WithRegistry(open.Registry()), WithAllowList("com.example.Other"))
	if _, err := deny.Decode(b); !errors.Is(err, ErrTagNotAllowed) {
		t.Fatalf("expected ErrTagNotAllowed, got %v", err)
	}

	allow := MustTyped(WithRegistry(open.Registry()), WithAllowList(tag))
	if _, err := allow.Decode(b); err != nil {
		t.Fatalf("allowed tag rejected: %v", err)
	}

	// builtins pass any allow-list
	nb, _ := open.Encode([]int{1})
	if _, err := deny.Decode(nb); err != nil {
		t.Fatalf("builtin rejected: %v", err)
	}

	strict := MustTyped(Strict())
	if _, err := strict.Decode([]byte(`["com.example.Legacy",{}]`)); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("strict unknown: %v", err)
	}
	if _, err := strict.Decode(b); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("strict must reject types it never registered: %v", err)
	}
	if _, err := Register[person](strict.Registry()); err != nil {
		t.Fatal(err)
	}
	if _, err := strict.Decode(b); err != nil {
		t.Fatalf("strict registered: %v", err)
	}
}

func TestTypedRegisterNameAlias(t *testing.T) {
	r := NewRegistry()
	if err := RegisterName[person](r, "com.app.Person"); err != nil {
		t.Fatal(err)
	}
	if err := RegisterName[account](r, "com.app.Person"); err == nil {
		t.Fatalf("expected conflict error")
	}
	c := MustTyped(WithRegistry(r))
	b, err := c.Encode(person{Name: "Ann", Age: 30})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), `["com.app.Person",`) {
		t.Fatalf("alias not written: %s", b)
	}
	got, err := c.Decode([]byte(`["com.app.Person",{"name":"Ann","age":30}]`))
	if err != nil {
		t.Fatal(err)
	}
	if got != (person{Name: "Ann", Age: 30}) {
		t.Fatalf("got %#v", got)
	}

	// composites follow the alias
	b, err = c.Encode([]*person{{Name: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), `["[]*com.app.Person",`) {
		t.Fatalf("composite tag: %s", b)
	}
}

func TestTypedCycleIsSerializationError(t *testing.T) {
	n := &node{Val: 1}
	n.Next = &node{Val: 2, Next: n}

	self := []any{nil}
	self[0] = self

	for _, v := range []any{n, self} {
		_, err := MustTyped().Encode(v)
		var se *SerializationError
		if !errors.As(err, &se) {
			t.Fatalf("%T: expected SerializationError, got %v", v, err)
		}
		if !errors.Is(err, ErrCycle) {
			t.Fatalf("%T: expected ErrCycle, got %v", v, err)
		}
	}

	// shared, acyclic references are fine
	shared := &person{Name: "s"}
	if _, err := MustTyped().Encode([]*person{shared, shared}); err != nil {
		t.Fatalf("shared pointer: %v", err)
	}
}

func TestTypedUnsupportedKinds(t *testing.T) {
	for _, v := range []any{func() {}, make(chan int), struct{ F func() }{}} {
		_, err := MustTyped().Encode(v)
		if !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("%T: expected ErrUnsupportedType, got %v", v, err)
		}
	}
}

func TestTypedMalformedPayloads(t *testing.T) {
	c := MustTyped()
	for _, in := range []string{
		`{"name":"Ann"}`,
		`["only-tag"]`,
		`[1,{}]`,
		`not json`,
		`"a" "b"`,
		`["int","nope"]`,
	} {
		_, err := c.Decode([]byte(in))
		var se *SerializationError
		if !errors.As(err, &se) {
			t.Fatalf("%s: expected SerializationError, got %v", in, err)
		}
	}
}

func TestTypedRejectsMismatchedInterface(t *testing.T) {
	c := MustTyped()
	tag := mustTag(t, c.Registry(), reflect.TypeOf(drawing{}))
	in := `["` + tag + `",{"Shapes":[["int",3]]}]`
	if _, err := c.Decode([]byte(in)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestRegistryCompositeLookup(t *testing.T) {
	r := NewRegistry()
	pt := mustTag(t, r, reflect.TypeOf(person{}))
	cases := []struct {
		tag  string
		want reflect.Type
	}{
		{"*" + pt, reflect.TypeOf(&person{})},
		{"[]" + pt, reflect.TypeOf([]person{})},
		{"[2]" + pt, reflect.TypeOf([2]person{})},
		{"map[string]" + pt, reflect.TypeOf(map[string]person{})},
		{"map[int][]*" + pt, reflect.TypeOf(map[int][]*person{})},
		{"map[string]map[string]int", reflect.TypeOf(map[string]map[string]int{})},
		{"[]interface {}", reflect.TypeOf([]any{})},
		{"map[string]interface {}", reflect.TypeOf(map[string]any{})},
		{"[]map[string][]interface {}", reflect.TypeOf([]map[string][]any{})},
	}
	for _, tc := range cases {
		tag, want := tc.tag, tc.want
		got, ok := r.Lookup(tag)
		if !ok || got != want {
			t.Fatalf("Lookup(%q) = %v,%v want %v", tag, got, ok, want)
		}
		if got := mustTag(t, r, want); got != tag {
			t.Fatalf("Tag(%v) = %q want %q", want, got, tag)
		}
	}
	if _, ok := r.Lookup("map[]]int"); ok {
		t.Fatalf("malformed tag resolved")
	}
	if _, ok := r.Lookup("map[[]int]int"); ok {
		t.Fatalf("non-comparable key resolved")
	}
}

func TestTypedFreshReaderNeedsRegisteredTypes(t *testing.T) {
	for _, f := range formats() {
		t.Run(f.String(), func(t *testing.T) {
			writer := MustTyped(WithFormat(f))
			b, err := writer.Encode(drawing{Shapes: []shape{square{Side: 2}}})
			if err != nil {
				t.Fatal(err)
			}

			// a process that never encoded these types only sees tags
			blind := MustTyped(WithFormat(f))
			got, err := blind.Decode(b)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := got.(Unknown); !ok {
				t.Fatalf("unregistered reader got %T", got)
			}

			reader := MustTyped(WithFormat(f), WithTypes(drawing{}, square{}))
			got, err = reader.Decode(b)
			if err != nil {
				t.Fatal(err)
			}
			d, ok := got.(drawing)
			if !ok || len(d.Shapes) != 1 || d.Shapes[0] != (square{Side: 2}) {
				t.Fatalf("got %#v", got)
			}

			// registration through WithTypes satisfies strict mode
			strict := MustTyped(WithFormat(f), Strict(), WithTypes(drawing{}, square{}))
			if _, err := strict.Decode(b); err != nil {
				t.Fatalf("strict: %v", err)
			}
		})
	}
}

func TestWithTypesRegistersComposites(t *testing.T) {
	c := MustTyped(WithTypes((*person)(nil), map[string][]cell(nil)))
	for _, typ := range []reflect.Type{reflect.TypeOf(person{}), reflect.TypeOf(cell{})} {
		tag := mustTag(t, c.Registry(), typ)
		if got, ok := c.Registry().Lookup(tag); !ok || got != typ {
			t.Fatalf("Lookup(%q) = %v,%v", tag, got, ok)
		}
	}
	if _, err := NewTyped(WithTypes(nil)); err == nil {
		t.Fatalf("untyped nil sample accepted")
	}
}

func TestTypedForeignBracketTagsDecodeToUnknown(t *testing.T) {
	c := MustTyped()
	for _, in := range []string{
		`["[Ljava.lang.String;",["a"]]`,
		`["[I",[1,2]]`,
		`["map[foo",{}]`,
		`["[x]int",[1]]`,
		`["[99999999]int",[1]]`,
	} {
		got, err := c.Decode([]byte(in))
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if _, ok := got.(Unknown); !ok {
			t.Fatalf("%s: got %T", in, got)
		}
	}
	if _, err := MustTyped(Strict()).Decode([]byte(`["[Ljava.lang.String;",["a"]]`)); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("strict: %v", err)
	}
}

func TestRegisterNameKeepsDefaultTag(t *testing.T) {
	writer := MustTyped()
	old, err := writer.Encode(person{Name: "Ann"})
	if err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := RegisterName[person](r, "com.app.Person"); err != nil {
		t.Fatal(err)
	}
	got, err := MustTyped(WithRegistry(r)).Decode(old)
	if err != nil {
		t.Fatal(err)
	}
	if got != (person{Name: "Ann"}) {
		t.Fatalf("payload under default tag: got %#v", got)
	}
}

func localA() any {
	type local struct{ A int }
	return local{A: 1}
}

func localB() any {
	type local struct{ B string }
	return local{B: "x"}
}

func TestRegistryRejectsSameNamedTypes(t *testing.T) {
	c := MustTyped()
	if _, err := c.Encode(localA()); err != nil {
		t.Fatal(err)
	}
	_, err := c.Encode(localB())
	if !errors.Is(err, ErrTagConflict) {
		t.Fatalf("expected ErrTagConflict, got %v", err)
	}
	var se *SerializationError
	if !errors.As(err, &se) {
		t.Fatalf("expected SerializationError, got %T", err)
	}
	if _, err := c.Registry().RegisterType(reflect.TypeOf(localB())); !errors.Is(err, ErrTagConflict) {
		t.Fatalf("RegisterType: %v", err)
	}
}
