// Package capture extracts values from responses for use by later checks.
//
// A capture expression names its source:
//   - "status", "duration" (milliseconds)
//   - "header:Name", "cookie:name"
//   - "body" (the whole logical content) or "body:path"
//   - a bare path, read from the body
//
// Captured values are available to later checks as {{name}} and
// {{checkName.name}}.
package capture
