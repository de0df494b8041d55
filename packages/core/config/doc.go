// Package config loads reqflow settings.
//
// Settings come from, in increasing precedence: built-in defaults, a
// .reqflow.yaml (or .yml, .json) file and REQFLOW_* environment variables.
// Command-line flags are merged on top by the CLI.
package config
