// Package cmd implements the reqflow CLI commands using Cobra.
//
// Available commands:
//   - run: Execute the checks of one or more suite files
//   - validate: Parse suite files without sending requests
//   - list: Show the checks defined in suite files
//   - report: Render a stored request log as HTML or JSON
//   - version: Show version information
//
// Settings come from .reqflow.yaml (or --config), REQFLOW_* environment
// variables, and flags, with flags taking precedence.
package cmd
