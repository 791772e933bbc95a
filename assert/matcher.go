// Package assert evaluates scenario assertions against a run's result bundle.
//
// A Matcher is a primitive predicate over one value. A Check pairs a matcher
// with a view of the bundle (status, log, dataset info, dataset items,
// statistics) and a context label. The Engine evaluates every check of a
// scenario without short-circuiting.
package assert

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pithecene-io/canary/types"
)

// Matcher is a predicate over one value.
// Match returns false and a human-readable message when the value does not match.
type Matcher interface {
	Match(actual any) (ok bool, message string)
}

// MatcherFunc adapts a function to a Matcher.
type MatcherFunc func(actual any) (bool, string)

// Match implements Matcher.
func (f MatcherFunc) Match(actual any) (bool, string) { return f(actual) }

// predicate is a built-in matcher. Messages read "Expected <actual> [not ]<verb> <expected>."
type predicate struct {
	verb     string
	expected string
	negate   bool
	test     func(actual any) bool
}

func (p predicate) Match(actual any) (bool, string) {
	if p.test(actual) != p.negate {
		return true, ""
	}
	return false, "Expected " + formatValue(actual) + " " + p.describe() + "."
}

func (p predicate) describe() string {
	s := "to " + p.verb
	if p.negate {
		s = "not " + s
	}
	if p.expected != "" {
		s += " " + p.expected
	}
	return s
}

// Not negates a matcher.
func Not(m Matcher) Matcher {
	if p, ok := m.(predicate); ok {
		p.negate = !p.negate
		return p
	}
	return MatcherFunc(func(actual any) (bool, string) {
		if ok, _ := m.Match(actual); ok {
			return false, "Expected " + formatValue(actual) + " not to match."
		}
		return true, ""
	})
}

// Equals matches values equal to expected. Numbers compare by value
// regardless of their Go type, and string-kinded values compare as strings.
func Equals(expected any) Matcher {
	want := normalize(expected)
	return predicate{verb: "be", expected: formatValue(expected), test: func(actual any) bool {
		return reflect.DeepEqual(normalize(actual), want)
	}}
}

// Contains matches strings containing expected as a substring,
// or arrays holding an element equal to expected.
func Contains(expected any) Matcher {
	want := normalize(expected)
	return predicate{verb: "contain", expected: formatValue(expected), test: func(actual any) bool {
		if s, ok := asString(actual); ok {
			sub, ok := want.(string)
			return ok && strings.Contains(s, sub)
		}
		rv := reflect.ValueOf(actual)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := range rv.Len() {
			if reflect.DeepEqual(normalize(rv.Index(i).Interface()), want) {
				return true
			}
		}
		return false
	}}
}

// StartsWith matches strings with the given prefix.
func StartsWith(prefix string) Matcher {
	return predicate{verb: "start with", expected: formatValue(prefix), test: func(actual any) bool {
		s, ok := asString(actual)
		return ok && strings.HasPrefix(s, prefix)
	}}
}

// NonEmptyString matches strings of non-zero length.
func NonEmptyString() Matcher {
	return predicate{verb: "be non empty string", test: func(actual any) bool {
		s, ok := asString(actual)
		return ok && s != ""
	}}
}

// NonEmptyArray matches slices with at least one element.
func NonEmptyArray() Matcher {
	return predicate{verb: "be non empty array", test: func(actual any) bool {
		rv := reflect.ValueOf(actual)
		return (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() > 0
	}}
}

// LessThan matches numbers strictly below n.
func LessThan(n float64) Matcher {
	return predicate{verb: "be less than", expected: formatNumber(n), test: func(actual any) bool {
		f, ok := types.ToFloat64(actual)
		return ok && f < n
	}}
}

// GreaterThan matches numbers strictly above n.
func GreaterThan(n float64) Matcher {
	return predicate{verb: "be greater than", expected: formatNumber(n), test: func(actual any) bool {
		f, ok := types.ToFloat64(actual)
		return ok && f > n
	}}
}

// Within matches numbers in the inclusive range [lo, hi].
func Within(lo, hi float64) Matcher {
	return predicate{verb: "be within range", expected: formatNumber(lo) + " - " + formatNumber(hi), test: func(actual any) bool {
		f, ok := types.ToFloat64(actual)
		return ok && f >= lo && f <= hi
	}}
}

// IsNumber matches numeric values. Numeric strings do not match.
func IsNumber() Matcher {
	return predicate{verb: "be number", test: func(actual any) bool {
		_, ok := types.ToFloat64(actual)
		return ok
	}}
}

// matcherBuilders maps declarative matcher names to constructors.
var matcherBuilders = map[string]func(arg any) (Matcher, error){
	"equals":   func(arg any) (Matcher, error) { return Equals(arg), nil },
	"contains": func(arg any) (Matcher, error) { return Contains(arg), nil },
	"starts_with": func(arg any) (Matcher, error) {
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("starts_with requires a string, got %T", arg)
		}
		return StartsWith(s), nil
	},
	"non_empty_string": func(any) (Matcher, error) { return NonEmptyString(), nil },
	"non_empty_array":  func(any) (Matcher, error) { return NonEmptyArray(), nil },
	"is_number":        func(any) (Matcher, error) { return IsNumber(), nil },
	"less_than": func(arg any) (Matcher, error) {
		n, err := numberArg("less_than", arg)
		if err != nil {
			return nil, err
		}
		return LessThan(n), nil
	},
	"greater_than": func(arg any) (Matcher, error) {
		n, err := numberArg("greater_than", arg)
		if err != nil {
			return nil, err
		}
		return GreaterThan(n), nil
	},
	"within": func(arg any) (Matcher, error) {
		lo, hi, err := rangeArg(arg)
		if err != nil {
			return nil, err
		}
		return Within(lo, hi), nil
	},
}

// ParseMatcher builds a matcher from its declarative name and argument.
// A "not_" prefix negates any matcher (e.g. "not_contains").
func ParseMatcher(name string, arg any) (Matcher, error) {
	base, negate := strings.CutPrefix(name, "not_")
	build, ok := matcherBuilders[base]
	if !ok {
		return nil, fmt.Errorf("unknown matcher %q", name)
	}
	m, err := build(arg)
	if err != nil {
		return nil, err
	}
	if negate {
		return Not(m), nil
	}
	return m, nil
}

func numberArg(name string, arg any) (float64, error) {
	n, ok := types.ToFloat64(arg)
	if !ok {
		return 0, fmt.Errorf("%s requires a number, got %T", name, arg)
	}
	return n, nil
}

// rangeArg accepts [lo, hi] or {min: lo, max: hi}.
func rangeArg(arg any) (float64, float64, error) {
	var lo, hi any
	switch v := arg.(type) {
	case []any:
		if len(v) != 2 {
			return 0, 0, fmt.Errorf("within requires [min, max], got %d values", len(v))
		}
		lo, hi = v[0], v[1]
	case map[string]any:
		lo, hi = v["min"], v["max"]
	default:
		return 0, 0, fmt.Errorf("within requires [min, max], got %T", arg)
	}
	l, lok := types.ToFloat64(lo)
	h, hok := types.ToFloat64(hi)
	if !lok || !hok {
		return 0, 0, fmt.Errorf("within bounds must be numbers")
	}
	if l > h {
		return 0, 0, fmt.Errorf("within min %v exceeds max %v", l, h)
	}
	return l, h, nil
}

func asString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

// normalize maps numbers to float64 and string kinds to string so that
// YAML-decoded expectations compare equal to JSON-decoded actuals.
func normalize(v any) any {
	if f, ok := types.ToFloat64(v); ok {
		return f
	}
	if s, ok := asString(v); ok {
		return s
	}
	return v
}

// maxShownValue bounds how much of a value appears in a failure message.
const maxShownValue = 200

func formatValue(v any) string {
	if v == nil {
		return "undefined"
	}
	if s, ok := asString(v); ok {
		return "'" + truncate(s) + "'"
	}
	if f, ok := types.ToFloat64(v); ok {
		return formatNumber(f)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return truncate(fmt.Sprint(v))
	}
	return truncate(string(b))
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func truncate(s string) string {
	if len(s) <= maxShownValue {
		return s
	}
	return s[:maxShownValue] + "..."
}
