// Package ttl resolves the expiration applied to cache writes: a global
// default plus sparse per-namespace overrides, all in whole seconds. Zero means
// the entry never expires.
package ttl

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Overrides maps a namespace to its TTL. Treat as read-only once built.
type Overrides map[string]time.Duration

// ConfigError describes a rejected configuration value. BuildOverrides returns
// them as diagnostics; NewPolicy returns one for a negative default.
type ConfigError struct {
	Namespace string // empty for the default
	Value     any
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("ttl: default expiration %v: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("ttl: override %q=%v: %v", e.Namespace, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var (
	ErrNegative   = errors.New("negative expiration")
	ErrNotNumeric = errors.New("not a number of seconds")
)

// BuildOverrides converts raw configuration values into an Overrides map.
//
// Accepted values are integers, floats (truncated to whole seconds), numeric
// strings, time.Duration and duration strings such as "90s", "5m" or "1d".
// Entries that are negative or cannot be read as seconds are left out and
// reported; the call itself never fails.
func BuildOverrides(raw map[string]any) (Overrides, []*ConfigError) {
	out := make(Overrides, len(raw))
	var diags []*ConfigError
	for _, ns := range sortedKeys(raw) {
		v := raw[ns]
		d, err := Seconds(v)
		if err != nil {
			diags = append(diags, &ConfigError{Namespace: ns, Value: v, Err: err})
			continue
		}
		out[ns] = d
	}
	return out, diags
}

// Seconds coerces v to a non-negative whole-second duration.
func Seconds(v any) (time.Duration, error) {
	var secs float64
	switch x := v.(type) {
	case time.Duration:
		secs = x.Seconds()
	case int:
		secs = float64(x)
	case int8:
		secs = float64(x)
	case int16:
		secs = float64(x)
	case int32:
		secs = float64(x)
	case int64:
		secs = float64(x)
	case uint:
		secs = float64(x)
	case uint8:
		secs = float64(x)
	case uint16:
		secs = float64(x)
	case uint32:
		secs = float64(x)
	case uint64:
		secs = float64(x)
	case float32:
		secs = float64(x)
	case float64:
		secs = x
	case string:
		s := strings.TrimSpace(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			secs = f
			break
		}
		d, err := str2duration.ParseDuration(s)
		if err != nil {
			return 0, errors.Wrapf(ErrNotNumeric, "%q", x)
		}
		secs = d.Seconds()
	default:
		return 0, errors.Wrapf(ErrNotNumeric, "%T", v)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, ErrNotNumeric
	}
	if secs < 0 {
		return 0, ErrNegative
	}
	if secs > math.MaxInt64/float64(time.Second) {
		return 0, errors.Newf("expiration %v out of range", v)
	}
	return time.Duration(math.Trunc(secs)) * time.Second, nil
}

// Policy is an immutable default TTL plus overrides. Safe for concurrent use.
type Policy struct {
	def       time.Duration
	overrides Overrides
}

// NewPolicy copies overrides. A negative default is a ConfigError; negative
// override entries are ignored at resolve time.
func NewPolicy(def time.Duration, overrides Overrides) (*Policy, error) {
	if def < 0 {
		return nil, &ConfigError{Value: def, Err: ErrNegative}
	}
	cp := make(Overrides, len(overrides))
	for ns, d := range overrides {
		cp[ns] = d
	}
	return &Policy{def: def.Truncate(time.Second), overrides: cp}, nil
}

// Resolve returns the TTL for namespace.
func (p *Policy) Resolve(namespace string) time.Duration {
	return Resolve(namespace, p.def, p.overrides)
}

func (p *Policy) Default() time.Duration { return p.def }

// Namespaces lists the namespaces with an override, sorted.
func (p *Policy) Namespaces() []string {
	out := make([]string, 0, len(p.overrides))
	for ns := range p.overrides {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Resolve returns overrides[namespace] when present and non-negative, def
// otherwise.
func Resolve(namespace string, def time.Duration, overrides Overrides) time.Duration {
	if d, ok := overrides[namespace]; ok && d >= 0 {
		return d
	}
	return def
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
