package workflow

import (
	"strconv"
	"strings"

	"github.com/gennaro-ai/gennaro/internal/stringutil"
)

// Data holds a node's free-form configuration. Keys are normalized to
// lowerCamelCase at load time so readers use exactly one canonical name.
type Data map[string]any

// Normalize returns a copy of d with every snake_case key rewritten to its
// lowerCamelCase form. Leading underscores (internal keys such as
// _currentDepth) are preserved. When both spellings are present the
// camelCase one wins.
func (d Data) Normalize() Data {
	if d == nil {
		return Data{}
	}
	out := make(Data, len(d))
	for k, v := range d {
		camel := stringutil.SnakeToCamel(k)
		if camel != k {
			if _, exists := d[camel]; exists {
				continue
			}
		}
		out[camel] = v
	}
	return out
}

// Has reports whether the canonical key is present.
func (d Data) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// String returns the value for key as a string, or def when absent or empty.
func (d Data) String(key, def string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	s := toString(v)
	if s == "" {
		return def
	}
	return s
}

// RawString is like String but treats an explicitly set empty string as
// present.
func (d Data) RawString(key, def string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	return toString(v)
}

// Int returns the value for key as an int, or def when absent or unparsable.
func (d Data) Int(key string, def int) int {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}

// Float returns the value for key as a float64, or def when absent or
// unparsable.
func (d Data) Float(key string, def float64) float64 {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the value for key as a bool. String values follow the
// frontend convention: anything except "false", "0" and "" is true.
func (d Data) Bool(key string, def bool) bool {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "", "false", "0":
			return false
		default:
			return true
		}
	}
	return def
}

// Map returns the value for key as a nested map, or nil.
func (d Data) Map(key string) map[string]any {
	v, ok := d[key]
	if !ok {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
