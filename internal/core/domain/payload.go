package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Payload is an open key/value structure. The accessors walk dot-separated paths
// ("bet.stake.amount") and fall back to the supplied default on any missing or
// malformed segment; they never panic.
type Payload map[string]any

// Value returns the raw value at path.
func (p Payload) Value(path string) (any, bool) {
	if p == nil || path == "" {
		return nil, false
	}

	var current any = map[string]any(p)
	for _, segment := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether a non-nil value exists at path.
func (p Payload) Has(path string) bool {
	v, ok := p.Value(path)
	return ok && v != nil
}

// String returns the value at path as a string.
func (p Payload) String(path, def string) string {
	v, ok := p.Value(path)
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return s
}

// Float returns the value at path as a float64.
func (p Payload) Float(path string, def float64) float64 {
	v, ok := p.Value(path)
	if !ok || v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// Int returns the value at path as an int64.
func (p Payload) Int(path string, def int64) int64 {
	v, ok := p.Value(path)
	if !ok || v == nil {
		return def
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return def
	}
	return i
}

// Bool returns the value at path as a bool.
func (p Payload) Bool(path string, def bool) bool {
	v, ok := p.Value(path)
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Decimal returns the value at path as a decimal. Strings are parsed exactly.
func (p Payload) Decimal(path string, def decimal.Decimal) decimal.Decimal {
	v, ok := p.Value(path)
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case float64:
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return d
}

// Map returns the nested object at path, or an empty payload.
func (p Payload) Map(path string) Payload {
	v, ok := p.Value(path)
	if !ok {
		return Payload{}
	}
	m, ok := asMap(v)
	if !ok {
		return Payload{}
	}
	return Payload(m)
}

// Clone returns a shallow copy that is safe to extend.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// With returns a copy of p with key set to value.
func (p Payload) With(key string, value any) Payload {
	out := p.Clone()
	out[key] = value
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Payload:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}
