package response

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/assertions"
)

// apply runs p against actual and converts a failed Result into an error.
func apply(subject string, actual any, p assertions.Predicate) error {
	res := p(actual)
	if res.Passed {
		return nil
	}
	if res.Err != nil && errors.Is(res.Err, assertions.ErrComparison) {
		return fmt.Errorf("%s: %w", subject, res.Err)
	}
	return &AssertionFailure{
		Subject:  subject,
		Operator: res.Operator,
		Expected: res.Expected,
		Actual:   res.Actual,
		Message:  res.Message,
		Cause:    res.Err,
	}
}

// CheckStatus compares the status code with expected.
func (r *Response) CheckStatus(expected int) error {
	if r.statusCode == expected {
		return nil
	}
	return &AssertionFailure{
		Subject:  "status",
		Operator: "equals",
		Expected: expected,
		Actual:   r.statusCode,
		Message:  fmt.Sprintf("status code %d is not %d", r.statusCode, expected),
	}
}

// CheckStatusInRange checks min <= status <= max.
func (r *Response) CheckStatusInRange(min, max int) error {
	if r.statusCode >= min && r.statusCode <= max {
		return nil
	}
	return &AssertionFailure{
		Subject:  "status",
		Operator: "between",
		Expected: [2]int{min, max},
		Actual:   r.statusCode,
		Message:  fmt.Sprintf("status code %d is not between %d and %d", r.statusCode, min, max),
	}
}

// CheckBodyPath resolves path against the logical content and applies p.
// A path that does not resolve is reported as a PathResolutionError, not as
// a predicate failure.
func (r *Response) CheckBodyPath(path string, p assertions.Predicate) error {
	actual, err := r.Query(path)
	if err != nil {
		return err
	}
	return apply("body "+path, actual, p)
}

// CheckContent applies p to the whole logical content.
func (r *Response) CheckContent(p assertions.Predicate) error {
	return apply("content", r.content, p)
}

// CheckErrors applies p to the "errors" member of the body.
func (r *Response) CheckErrors(p assertions.Predicate) error {
	return apply("errors", r.errors, p)
}

// CheckSchema validates the logical content against a JSON Schema document.
func (r *Response) CheckSchema(schema []byte) error {
	if r.bodyKind != BodyJSON {
		return &UnsupportedContentError{ContentType: r.contentType, Path: "$"}
	}
	return apply("schema", r.content, assertions.MatchesSchema(schema))
}

// CheckHeader applies p to the header value. A missing header is presented
// to the predicate as null.
func (r *Response) CheckHeader(name string, p assertions.Predicate) error {
	var actual any
	if v, ok := r.headers.Get(name); ok {
		actual = v
	}
	return apply("header "+name, actual, p)
}

func (r *Response) CheckHeaderPresent(name string) error {
	if _, ok := r.headers.Get(name); ok {
		return nil
	}
	return &AssertionFailure{
		Subject:  "header " + name,
		Operator: "exists",
		Message:  fmt.Sprintf("header %s does not exist in the response", name),
	}
}

// CheckCookie applies p to the cookie value, or to null if it was not set.
func (r *Response) CheckCookie(name string, p assertions.Predicate) error {
	var actual any
	if v, ok := r.cookies[name]; ok {
		actual = v
	}
	return apply("cookie "+name, actual, p)
}

// CheckElapsedAtMost checks the round trip took no longer than max.
func (r *Response) CheckElapsedAtMost(max time.Duration) error {
	if r.elapsed <= max {
		return nil
	}
	return &AssertionFailure{
		Subject:  "elapsed",
		Operator: "<=",
		Expected: max.Seconds(),
		Actual:   r.elapsed.Seconds(),
		Message:  fmt.Sprintf("response time %.3fs exceeds the maximum expected time %.3fs", r.elapsed.Seconds(), max.Seconds()),
	}
}
