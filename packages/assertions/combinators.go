package assertions

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
)

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return fmt.Sprintf("%q", string(val))
	}
	return fmt.Sprintf("%v", v)
}

// stringify coerces a value to the text a pattern is matched against.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return "null"
	}
	return fmt.Sprintf("%v", v)
}

// Equals passes when actual is structurally equal to expected: sequences are
// order sensitive, mappings compare key sets and values, numbers compare by
// value regardless of their Go type.
func Equals(expected any) Predicate {
	return func(actual any) *Result {
		if deepEqual(actual, expected) {
			return pass("equals", expected, actual)
		}
		return fail("equals", expected, actual, "%s", describeMismatch(expected, actual))
	}
}

// NotEquals is the negation of Equals.
func NotEquals(expected any) Predicate {
	return func(actual any) *Result {
		if !deepEqual(actual, expected) {
			return pass("notEquals", expected, actual)
		}
		return fail("notEquals", expected, actual, "expected %s not to equal %s", formatValue(actual), formatValue(expected))
	}
}

// containsValue reports whether needle is inside haystack: substring for
// text, element for sequences, key for mappings.
func containsValue(haystack, needle any) (bool, bool) {
	h := normalize(haystack)
	switch hv := h.(type) {
	case string:
		switch nv := normalize(needle).(type) {
		case string:
			return strings.Contains(hv, nv), true
		case []byte:
			return strings.Contains(hv, string(nv)), true
		}
	case []byte:
		switch nv := normalize(needle).(type) {
		case string:
			return bytes.Contains(hv, []byte(nv)), true
		case []byte:
			return bytes.Contains(hv, nv), true
		}
	case []any:
		for _, item := range hv {
			if deepEqual(item, needle) {
				return true, true
			}
		}
		return false, true
	case map[string]any:
		key, ok := normalize(needle).(string)
		if !ok {
			return false, false
		}
		_, found := hv[key]
		return found, true
	}
	return false, false
}

// Contains passes when expected is a substring of actual, an element of an
// actual sequence, or a key of an actual mapping.
func Contains(expected any) Predicate {
	return func(actual any) *Result {
		found, ok := containsValue(actual, expected)
		if !ok {
			return incomparable("contains", expected, actual)
		}
		if found {
			return pass("contains", expected, actual)
		}
		return fail("contains", expected, actual, "expected %s to contain %s", formatValue(actual), formatValue(expected))
	}
}

// MemberOf passes when actual is found in the given collection. It is the
// mirror of Contains: the argument is the haystack, not the needle.
func MemberOf(collection any) Predicate {
	return func(actual any) *Result {
		found, ok := containsValue(collection, actual)
		if !ok {
			return incomparable("memberOf", collection, actual)
		}
		if found {
			return pass("memberOf", collection, actual)
		}
		return fail("memberOf", collection, actual, "expected %s to be in %s", formatValue(actual), formatValue(collection))
	}
}

// compareOrdered returns -1, 0 or 1. Only numbers against numbers and
// strings against strings are ordered.
func compareOrdered(actual, expected any) (int, bool) {
	switch a := normalize(actual).(type) {
	case float64:
		if e, ok := normalize(expected).(float64); ok {
			switch {
			case a < e:
				return -1, true
			case a > e:
				return 1, true
			}
			return 0, true
		}
	case string:
		if e, ok := normalize(expected).(string); ok {
			return strings.Compare(a, e), true
		}
	}
	return 0, false
}

func ordered(op string, expected any, accept func(int) bool) Predicate {
	return func(actual any) *Result {
		c, ok := compareOrdered(actual, expected)
		if !ok {
			return incomparable(op, expected, actual)
		}
		if accept(c) {
			return pass(op, expected, actual)
		}
		return fail(op, expected, actual, "expected %s %s %s", formatValue(actual), op, formatValue(expected))
	}
}

// GreaterThan passes when actual > expected.
func GreaterThan(expected any) Predicate {
	return ordered(">", expected, func(c int) bool { return c > 0 })
}

// LessThan passes when actual < expected.
func LessThan(expected any) Predicate {
	return ordered("<", expected, func(c int) bool { return c < 0 })
}

func GreaterOrEqual(expected any) Predicate {
	return ordered(">=", expected, func(c int) bool { return c >= 0 })
}

func LessOrEqual(expected any) Predicate {
	return ordered("<=", expected, func(c int) bool { return c <= 0 })
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// IsNull passes when actual is the null value.
func IsNull() Predicate {
	return func(actual any) *Result {
		if isNil(actual) {
			return pass("isNull", nil, actual)
		}
		return fail("isNull", nil, actual, "expected null, got %s", formatValue(actual))
	}
}

// IsNotNull passes when actual is anything but the null value.
func IsNotNull() Predicate {
	return func(actual any) *Result {
		if !isNil(actual) {
			return pass("isNotNull", nil, actual)
		}
		return fail("isNotNull", nil, actual, "expected a value, got null")
	}
}

// Matches passes when the string form of actual matches pattern starting at
// its first character. The match does not need to consume the whole string.
func Matches(pattern string) Predicate {
	re, err := regexp.Compile(pattern)
	return func(actual any) *Result {
		if err != nil {
			r := fail("matches", pattern, actual, "invalid regex pattern: %v", err)
			r.Err = err
			return r
		}
		s := stringify(actual)
		// The leftmost match starts at 0 whenever any match does.
		if loc := re.FindStringIndex(s); loc != nil && loc[0] == 0 {
			return pass("matches", pattern, actual)
		}
		return fail("matches", pattern, actual, "expected %q to match /%s/", s, pattern)
	}
}

func StartsWith(prefix string) Predicate {
	return func(actual any) *Result {
		if strings.HasPrefix(stringify(actual), prefix) {
			return pass("startsWith", prefix, actual)
		}
		return fail("startsWith", prefix, actual, "expected %s to start with %q", formatValue(actual), prefix)
	}
}

func EndsWith(suffix string) Predicate {
	return func(actual any) *Result {
		if strings.HasSuffix(stringify(actual), suffix) {
			return pass("endsWith", suffix, actual)
		}
		return fail("endsWith", suffix, actual, "expected %s to end with %q", formatValue(actual), suffix)
	}
}

// computeLength counts runes, bytes, elements or keys. Other values give -1.
func computeLength(actual any) int {
	switch v := normalize(actual).(type) {
	case string:
		return utf8.RuneCountInString(v)
	case []byte:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	}
	return -1
}

// HasLength passes when a string, sequence or mapping has n elements.
func HasLength(n int) Predicate {
	return func(actual any) *Result {
		l := computeLength(actual)
		if l == -1 {
			return incomparable("length", n, actual)
		}
		if l == n {
			return pass("length", n, actual)
		}
		return fail("length", n, actual, "expected length %d, got %d", n, l)
	}
}

// TypeName returns the JSON type name of a decoded value.
func TypeName(v any) string {
	switch normalize(v).(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case []byte:
		return "bytes"
	}
	return reflect.TypeOf(v).String()
}

// IsType passes when TypeName(actual) equals name.
func IsType(name string) Predicate {
	return func(actual any) *Result {
		actualType := TypeName(actual)
		if actualType == name {
			return pass("type", name, actual)
		}
		return fail("type", name, actual, "expected type %s, got %s", name, actualType)
	}
}

// Not inverts p. Operands p cannot evaluate stay a failure.
func Not(p Predicate) Predicate {
	return func(actual any) *Result {
		r := p(actual)
		if r.Err != nil {
			return r
		}
		if !r.Passed {
			return pass("not "+r.Operator, r.Expected, actual)
		}
		return fail("not "+r.Operator, r.Expected, actual, "expected %s not to satisfy %s %s", formatValue(actual), r.Operator, formatValue(r.Expected))
	}
}

// AllOf passes when every predicate passes. It stops at the first failure
// and returns that failure unchanged.
func AllOf(predicates ...Predicate) Predicate {
	return func(actual any) *Result {
		for _, p := range predicates {
			if r := p(actual); !r.Passed {
				return r
			}
		}
		return pass("allOf", nil, actual)
	}
}

func joinWithOr(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, " OR ")
}

// AnyOf passes when at least one predicate passes. When none does, the
// failure message lists every attempt joined by " OR ".
func AnyOf(predicates ...Predicate) Predicate {
	return func(actual any) *Result {
		if len(predicates) == 0 {
			return fail("anyOf", nil, actual, "anyOf requires at least one predicate")
		}
		var errs *multierror.Error
		for _, p := range predicates {
			r := p(actual)
			if r.Passed {
				return pass("anyOf", nil, actual)
			}
			errs = multierror.Append(errs, r.Failure())
		}
		errs.ErrorFormat = joinWithOr
		return fail("anyOf", nil, actual, "%s", errs.Error())
	}
}
