// Package http sends requests for reqflow and hands back the raw exchange.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts and per-request deadlines
//   - Redirect handling
//   - Base URL resolution and an optional cookie jar
//   - JSON, form and multipart bodies
//   - Pluggable authentication and exchange recording
//
// Decoding the body is left to package response.
package http
