// Package entry models the structured records the engine analyzes: security
// log lines and compatibility data decoded into a JSON-like value tree.
//
// Values inside an Entry are restricted to the shapes produced by JSON and
// YAML decoding: nil, bool, string, numbers, []any and map[string]any.
// Path resolution walks that tree explicitly; a missing path is not an error.
package entry

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Entry is one record under analysis. It is never mutated by the engine.
type Entry map[string]any

// Well-known fields every entry may expose.
const (
	FieldSeverity    = "severity"
	FieldMessage     = "message"
	FieldTool        = "tool"
	FieldApplication = "application"
	FieldVersion     = "version"
)

// Lookup resolves a dot-separated path. The boolean is false when any segment
// is missing ("undefined"); an explicit null resolves to (nil, true).
// Numeric segments index into arrays.
func (e Entry) Lookup(path string) (any, bool) {
	if e == nil {
		return nil, false
	}
	var current any = map[string]any(e)
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case Entry:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Field returns the top-level field as a string, or "" when absent or null.
func (e Entry) Field(name string) (string, bool) {
	v, ok := e[name]
	if !ok || v == nil {
		return "", false
	}
	return Stringify(v), true
}

func (e Entry) Severity() (string, bool)    { return e.Field(FieldSeverity) }
func (e Entry) Message() (string, bool)     { return e.Field(FieldMessage) }
func (e Entry) Tool() (string, bool)        { return e.Field(FieldTool) }
func (e Entry) Application() (string, bool) { return e.Field(FieldApplication) }
func (e Entry) Version() (string, bool)     { return e.Field(FieldVersion) }

// Text serializes the entry into the lowercase blob the pattern catalog scans.
// HTML escaping is disabled so markup such as <script> survives encoding.
func (e Entry) Text() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(e)); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(buf.String(), "\n"))
}

// Stringify renders a value the way conditions compare against it.
// Composite values are rendered as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	if f, ok := number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// ToNumber coerces a resolved value for numeric comparison. Numbers, numeric
// strings, booleans and null coerce; everything else does not.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return number(v)
}

// Equal is strict equality: same kind and same value. Numbers compare by
// value regardless of their Go representation; composites are never equal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	switch ta := a.(type) {
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	}
	return false
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
