// Package condition decides whether a rule's declarative condition set
// applies to an entry.
//
// Condition specs arrive as loosely typed YAML or JSON values. They are
// compiled once, at rule-load time, into a Spec whose Kind selects the
// matching behavior; evaluation never inspects the raw shape again.
package condition

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gzhole/logshield/internal/entry"
)

// ErrInvalidSpec is returned for condition specs that cannot be compiled or
// for zero-value specs reaching evaluation.
var ErrInvalidSpec = errors.New("invalid condition spec")

// Kind tags the variant held by a Spec.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindLiteral
	KindSubstring
	KindRegex
	KindIn
	KindGt
	KindLt
	KindEq
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindLiteral:
		return "literal"
	case KindSubstring:
		return "substring"
	case KindRegex:
		return "regex"
	case KindIn:
		return "in"
	case KindGt:
		return "gt"
	case KindLt:
		return "lt"
	case KindEq:
		return "eq"
	default:
		return "invalid"
	}
}

// Operator keys recognized in object specs, in precedence order.
const (
	OpRegex   = "$regex"
	OpOptions = "$options"
	OpIn      = "$in"
	OpGt      = "$gt"
	OpLt      = "$lt"
	OpEq      = "$eq"
)

// Spec is one compiled per-field condition.
type Spec struct {
	kind   Kind
	value  any // literal and eq operand
	needle string
	re     *regexp.Regexp
	values []any
	num    float64
	raw    any // original declaration, kept for display and re-encoding
}

// Kind reports the variant.
func (s Spec) Kind() Kind { return s.kind }

// Raw returns the declaration the spec was compiled from.
func (s Spec) Raw() any { return s.raw }

func Null() Spec { return Spec{kind: KindNull} }

func Literal(v any) Spec { return Spec{kind: KindLiteral, value: v, raw: v} }

func Substring(s string) Spec {
	return Spec{kind: KindSubstring, needle: strings.ToLower(s), raw: s}
}

func In(values ...any) Spec {
	return Spec{kind: KindIn, values: values, raw: map[string]any{OpIn: values}}
}

func Gt(n float64) Spec { return Spec{kind: KindGt, num: n, raw: map[string]any{OpGt: n}} }

func Lt(n float64) Spec { return Spec{kind: KindLt, num: n, raw: map[string]any{OpLt: n}} }

func Eq(v any) Spec { return Spec{kind: KindEq, value: v, raw: map[string]any{OpEq: v}} }

// Regex compiles pattern with JavaScript-style flags. Only i, m and s change
// matching; g, u and y are accepted and ignored.
func Regex(pattern, flags string) (Spec, error) {
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return Spec{}, err
	}
	raw := map[string]any{OpRegex: pattern}
	if flags != "" {
		raw[OpOptions] = flags
	}
	return Spec{kind: KindRegex, re: re, raw: raw}, nil
}

// MustRegex is Regex for statically known patterns.
func MustRegex(pattern, flags string) Spec {
	s, err := Regex(pattern, flags)
	if err != nil {
		panic(err)
	}
	return s
}

// slashRegex matches "/body/" and "/body/flags" string specs. Only flags
// that change matching are accepted after the closing slash, so paths such
// as "/login/gui" stay substrings.
var slashRegex = regexp.MustCompile(`^/(.*)/([ims]*)$`)

// ParseSpec compiles a raw YAML/JSON value into a Spec:
//   - nil                   → Null
//   - "/pattern/" string    → Regex, always case-insensitive
//   - other string          → case-insensitive Substring
//   - object with operators → the first of $regex, $in, $gt, $lt, $eq
//   - anything else         → Literal (strict equality)
func ParseSpec(raw any) (Spec, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		text := v
		if text == "/" {
			text = "//"
		}
		if m := slashRegex.FindStringSubmatch(text); m != nil {
			flags := m[2]
			if !strings.Contains(flags, "i") {
				flags += "i"
			}
			re, err := compileRegex(m[1], flags)
			if err != nil {
				return Spec{}, err
			}
			return Spec{kind: KindRegex, re: re, raw: v}, nil
		}
		return Substring(v), nil
	case map[string]any:
		return parseOperator(v)
	default:
		return Literal(v), nil
	}
}

func parseOperator(obj map[string]any) (Spec, error) {
	if p, ok := obj[OpRegex]; ok {
		pattern, isString := p.(string)
		if !isString {
			return Spec{}, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidSpec, OpRegex, p)
		}
		var flags string
		if o, ok := obj[OpOptions]; ok {
			if flags, ok = o.(string); !ok {
				return Spec{}, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidSpec, OpOptions, o)
			}
		}
		s, err := Regex(pattern, flags)
		if err != nil {
			return Spec{}, err
		}
		s.raw = obj
		return s, nil
	}
	if v, ok := obj[OpIn]; ok {
		list, isList := v.([]any)
		if !isList {
			return Spec{}, fmt.Errorf("%w: %s must be a list, got %T", ErrInvalidSpec, OpIn, v)
		}
		s := In(list...)
		s.raw = obj
		return s, nil
	}
	for _, op := range []string{OpGt, OpLt} {
		v, ok := obj[op]
		if !ok {
			continue
		}
		n, numeric := entry.ToNumber(v)
		if !numeric {
			return Spec{}, fmt.Errorf("%w: %s operand %v is not numeric", ErrInvalidSpec, op, v)
		}
		s := Gt(n)
		if op == OpLt {
			s = Lt(n)
		}
		s.raw = obj
		return s, nil
	}
	if v, ok := obj[OpEq]; ok {
		s := Eq(v)
		s.raw = obj
		return s, nil
	}
	return Literal(obj), nil
}

func compileRegex(pattern, flags string) (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		case 'g', 'u', 'y':
		default:
			return nil, fmt.Errorf("%w: unsupported regex flag %q", ErrInvalidSpec, f)
		}
	}
	expr := pattern
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return re, nil
}

// Match applies the spec to a resolved value. present is false when the
// path was undefined; only Null specs match an undefined value.
func (s Spec) Match(v any, present bool) (bool, error) {
	if s.kind == KindNull {
		return !present || v == nil, nil
	}
	if s.kind == KindInvalid {
		return false, ErrInvalidSpec
	}
	if !present {
		return false, nil
	}

	switch s.kind {
	case KindRegex:
		return s.re.MatchString(entry.Stringify(v)), nil
	case KindSubstring:
		return strings.Contains(strings.ToLower(entry.Stringify(v)), s.needle), nil
	case KindIn:
		for _, candidate := range s.values {
			if entry.Equal(v, candidate) {
				return true, nil
			}
		}
		return false, nil
	case KindGt:
		n, ok := entry.ToNumber(v)
		return ok && n > s.num, nil
	case KindLt:
		n, ok := entry.ToNumber(v)
		return ok && n < s.num, nil
	case KindEq:
		return entry.Equal(v, s.value), nil
	case KindLiteral:
		return entry.Equal(v, s.value), nil
	}
	return false, ErrInvalidSpec
}
