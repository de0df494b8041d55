// Package response normalizes a single HTTP or GraphQL exchange into one
// queryable value.
//
// A Response is built once from the transport's raw result. The body is
// decoded eagerly according to the Content-Type header:
//   - application/json is parsed into maps, slices and scalars
//   - text/* is decoded with the reported charset (UTF-8 by default)
//   - anything else is kept as opaque bytes
//
// After construction a Response is never mutated, so it can be read from
// several goroutines without locking. Checks resolve a path (a.b[0].c) or a
// header, cookie, status or timing value and apply an assertions.Predicate.
package response
