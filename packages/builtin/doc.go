// Package builtin provides the functions usable inside {{ }} placeholders
// of reqflow suites, e.g. {{uuid()}} or {{random(1, 10)}}.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(): current time, RFC 3339
//   - timestamp(), timestampMs(): Unix time in seconds or milliseconds
//   - date([layout]): current UTC date, Go layout, default 2006-01-02
//   - random([min, max]): random integer in range, default 0..100
//   - randomString([length]): random alphanumeric string
//   - randomEmail(): random address under a .test domain
//   - base64(value), base64Decode(value)
//   - sha256(value): hex digest
//   - urlEncode(value), urlDecode(value)
//   - env(name): environment variable value
package builtin
