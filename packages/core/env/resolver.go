package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/reqflow/packages/builtin"
)

var (
	variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	singlePattern   = regexp.MustCompile(`^\{\{([^}]+)\}\}$`)
)

// WarnFunc receives a message for every placeholder that could not be resolved.
type WarnFunc func(format string, args ...any)

// Resolver is safe for concurrent use. Captures shadow variables of the same name.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
		funcs:     builtin.NewRegistry(),
	}
}

func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores value under both "request.name" and "name".
func (r *Resolver) SetCapture(requestName, captureName string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[requestName+"."+captureName] = value
	r.captures[captureName] = value
}

func (r *Resolver) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	return nil, false
}

// evaluate returns the value behind a single placeholder expression.
func (r *Resolver) evaluate(expr string) (any, bool) {
	expr = strings.TrimSpace(expr)

	if name, ok := strings.CutPrefix(expr, "$"); ok {
		if val, set := os.LookupEnv(name); set {
			return val, true
		}
		r.warn("unresolved environment variable: $%s", name)
		return nil, false
	}

	if builtin.IsCall(expr) {
		v, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function call %s failed: %v", expr, err)
			return nil, false
		}
		return v, true
	}

	if v, ok := r.Lookup(expr); ok {
		return v, true
	}
	r.warn("unresolved variable: %s", expr)
	return nil, false
}

// Resolve substitutes every placeholder in input with its string form.
// Unresolved placeholders are left as written.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		v, ok := r.evaluate(match[2 : len(match)-2])
		if !ok {
			return match
		}
		return stringify(v)
	})
}

// ResolveValue is like Resolve but keeps the type of a lone placeholder.
func (r *Resolver) ResolveValue(input string) any {
	if m := singlePattern.FindStringSubmatch(input); m != nil && !strings.Contains(m[1], "{") {
		if v, ok := r.evaluate(m[1]); ok {
			return v
		}
		return input
	}
	return r.Resolve(input)
}

// ResolveDeep walks maps and slices decoded from YAML or JSON and resolves
// every string inside them.
func (r *Resolver) ResolveDeep(v any) any {
	switch val := v.(type) {
	case string:
		return r.ResolveValue(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[r.Resolve(k)] = r.ResolveDeep(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveDeep(item)
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// UnresolvedVariables lists the variable and capture placeholders in input
// that have no value yet. Environment and function placeholders are ignored.
func (r *Resolver) UnresolvedVariables(input string) []string {
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || builtin.IsCall(expr) {
			continue
		}
		if _, ok := r.Lookup(expr); !ok {
			names = append(names, expr)
		}
	}
	return names
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.UnresolvedVariables(input)) > 0
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.warnFunc = r.warnFunc
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.captures {
		clone.captures[k] = v
	}
	return clone
}

func stringify(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}
