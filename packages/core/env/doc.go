// Package env resolves {{ }} placeholders in suite values.
//
// A placeholder is one of:
//   - {{name}}: a suite variable or a value captured by an earlier request
//   - {{request.name}}: a capture scoped to the request that produced it
//   - {{$NAME}}: an OS environment variable
//   - {{fn(args)}}: a builtin function call
//
// A string made of a single placeholder resolves to the typed value, so
// {{count}} stays an integer inside JSON bodies and matchers.
package env
