package env

import (
	"os"
	"strings"
)

// Environment is a named set of variables selected from a suite or config.
type Environment struct {
	Name      string
	Variables map[string]any
}

// SelectEnvironment picks envName out of the named environments. An unknown
// name yields an empty environment.
func SelectEnvironment(envName string, envs map[string]map[string]any) *Environment {
	env := &Environment{
		Name:      envName,
		Variables: make(map[string]any),
	}
	for k, v := range envs[envName] {
		env.Variables[k] = v
	}
	return env
}

// MergeVariables merges sources left to right; later sources win.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns the process environment entries starting with prefix,
// with the prefix stripped.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			result[name] = value
		}
	}
	return result
}
