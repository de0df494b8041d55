package parser

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/reqflow/packages/assertions"
)

// ErrUnknownOperator is returned for matcher keys that mix operators with
// plain fields.
var ErrUnknownOperator = errors.New("unknown matcher operator")

// Matcher is the raw YAML form of an expectation, compiled into an
// assertions.Predicate once placeholders can be resolved.
type Matcher struct {
	Value any
	Line  int
}

// ResolveFunc substitutes placeholders inside a decoded value.
type ResolveFunc func(v any) any

func identity(v any) any { return v }

func (m *Matcher) UnmarshalYAML(node *yaml.Node) error {
	m.Line = node.Line
	return node.Decode(&m.Value)
}

func (b *BodyChecks) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: body expectations must be a mapping of path to matcher", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var m Matcher
		if err := m.UnmarshalYAML(value); err != nil {
			return err
		}
		*b = append(*b, BodyCheck{Path: key.Value, Matcher: m})
	}
	return nil
}

type operatorFunc func(arg any, resolve ResolveFunc) (assertions.Predicate, error)

var operators map[string]operatorFunc

func init() {
	operators = map[string]operatorFunc{
		"equals":     valueOp(assertions.Equals),
		"notEquals":  valueOp(assertions.NotEquals),
		"contains":   valueOp(assertions.Contains),
		"gt":         valueOp(assertions.GreaterThan),
		"gte":        valueOp(assertions.GreaterOrEqual),
		"lt":         valueOp(assertions.LessThan),
		"lte":        valueOp(assertions.LessOrEqual),
		"in":         opIn,
		"isNull":     opNull,
		"matches":    stringOp(assertions.Matches),
		"startsWith": stringOp(assertions.StartsWith),
		"endsWith":   stringOp(assertions.EndsWith),
		"type":       stringOp(assertions.IsType),
		"length":     opLength,
		"anyOf":      listOp(assertions.AnyOf),
		"allOf":      listOp(assertions.AllOf),
		"not":        opNot,
	}
}

// Operators lists the supported operator keys.
func Operators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile turns the matcher into a predicate. A nil resolve leaves values as
// written.
func (m Matcher) Compile(resolve ResolveFunc) (assertions.Predicate, error) {
	if resolve == nil {
		resolve = identity
	}
	p, err := compileValue(m.Value, resolve)
	if err != nil && m.Line > 0 {
		return nil, fmt.Errorf("line %d: %w", m.Line, err)
	}
	return p, err
}

func compileValue(raw any, resolve ResolveFunc) (assertions.Predicate, error) {
	ops, ok := raw.(map[string]any)
	if !ok || !hasOperator(ops) {
		return assertions.Equals(resolve(raw)), nil
	}

	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	predicates := make([]assertions.Predicate, 0, len(keys))
	for _, k := range keys {
		op, ok := operators[k]
		if !ok {
			return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownOperator, k, strings.Join(Operators(), ", "))
		}
		p, err := op(ops[k], resolve)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		predicates = append(predicates, p)
	}

	if len(predicates) == 1 {
		return predicates[0], nil
	}
	return assertions.AllOf(predicates...), nil
}

func hasOperator(ops map[string]any) bool {
	for k := range ops {
		if _, ok := operators[k]; ok {
			return true
		}
	}
	return false
}

func valueOp(factory func(any) assertions.Predicate) operatorFunc {
	return func(arg any, resolve ResolveFunc) (assertions.Predicate, error) {
		return factory(resolve(arg)), nil
	}
}

func stringOp(factory func(string) assertions.Predicate) operatorFunc {
	return func(arg any, resolve ResolveFunc) (assertions.Predicate, error) {
		s, ok := resolve(arg).(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %v", arg)
		}
		return factory(s), nil
	}
}

func opIn(arg any, resolve ResolveFunc) (assertions.Predicate, error) {
	v := resolve(arg)
	if _, ok := v.([]any); !ok {
		return nil, fmt.Errorf("expected a list, got %v", arg)
	}
	return assertions.MemberOf(v), nil
}

func opNull(arg any, resolve ResolveFunc) (assertions.Predicate, error) {
	want, ok := resolve(arg).(bool)
	if !ok {
		return nil, fmt.Errorf("expected true or false, got %v", arg)
	}
	if want {
		return assertions.IsNull(), nil
	}
	return assertions.IsNotNull(), nil
}

func opLength(arg any, resolve ResolveFunc) (assertions.Predicate, error) {
	n, ok := resolve(arg).(int)
	if !ok || n < 0 {
		return nil, fmt.Errorf("expected a non-negative integer, got %v", arg)
	}
	return assertions.HasLength(n), nil
}

func listOp(combine func(...assertions.Predicate) assertions.Predicate) operatorFunc {
	return func(arg any, resolve ResolveFunc) (assertions.Predicate, error) {
		items, ok := arg.([]any)
		if !ok || len(items) == 0 {
			return nil, fmt.Errorf("expected a non-empty list of matchers")
		}
		predicates := make([]assertions.Predicate, len(items))
		for i, item := range items {
			p, err := compileValue(item, resolve)
			if err != nil {
				return nil, err
			}
			predicates[i] = p
		}
		return combine(predicates...), nil
	}
}

func opNot(arg any, resolve ResolveFunc) (assertions.Predicate, error) {
	p, err := compileValue(arg, resolve)
	if err != nil {
		return nil, err
	}
	return assertions.Not(p), nil
}

// validatePattern reports regex errors early unless the pattern still holds
// placeholders.
func validatePattern(m Matcher) error {
	ops, ok := m.Value.(map[string]any)
	if !ok {
		return nil
	}
	var walk func(ops map[string]any) error
	walk = func(ops map[string]any) error {
		for k, v := range ops {
			switch k {
			case "matches":
				if s, ok := v.(string); ok && !strings.Contains(s, "{{") {
					if _, err := regexp.Compile(s); err != nil {
						return fmt.Errorf("invalid regex pattern %q: %w", s, err)
					}
				}
			case "not":
				if inner, ok := v.(map[string]any); ok {
					if err := walk(inner); err != nil {
						return err
					}
				}
			case "anyOf", "allOf":
				items, _ := v.([]any)
				for _, item := range items {
					if inner, ok := item.(map[string]any); ok {
						if err := walk(inner); err != nil {
							return err
						}
					}
				}
			}
		}
		return nil
	}
	return walk(ops)
}
