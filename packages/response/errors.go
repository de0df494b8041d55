package response

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/reqflow/packages/assertions"
)

var (
	// ErrDecode is matched by every DecodeError.
	ErrDecode = errors.New("malformed structured payload")
	// ErrUnsupportedContent is matched by every UnsupportedContentError.
	ErrUnsupportedContent = errors.New("body is not structured")
	// ErrPathResolution is matched by PathResolutionError and by
	// UnsupportedContentError, since neither lets a path resolve.
	ErrPathResolution = errors.New("path did not resolve")
	// ErrAssertion is matched by every AssertionFailure.
	ErrAssertion = errors.New("assertion failed")
	// ErrNoResponse is returned by New when there is no raw response.
	ErrNoResponse = errors.New("no response to decode")
	// ErrComparison is matched when an ordering or containment check is
	// applied to operands of incompatible types.
	ErrComparison = assertions.ErrComparison
)

// DecodeError reports a body that claimed, or was forced, to be JSON but
// could not be parsed.
type DecodeError struct {
	ContentType string
	Forced      bool
	Err         error
}

func (e *DecodeError) Error() string {
	if e.Forced {
		return fmt.Sprintf("malformed JSON body (forced structured parse, content type %q): %v", e.ContentType, e.Err)
	}
	return fmt.Sprintf("malformed JSON body (content type %q): %v", e.ContentType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// UnsupportedContentError reports a path query against a text or binary body.
type UnsupportedContentError struct {
	ContentType string
	Path        string
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("cannot resolve path %q: body with content type %q is not structured", e.Path, e.ContentType)
}

func (e *UnsupportedContentError) Is(target error) bool {
	return target == ErrUnsupportedContent || target == ErrPathResolution
}

// PathResolutionError reports a path that matched nothing.
type PathResolutionError struct {
	Path string
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("path %q does not match any element in the response", e.Path)
}

func (e *PathResolutionError) Is(target error) bool { return target == ErrPathResolution }

// AssertionFailure is a predicate mismatch on a response value.
type AssertionFailure struct {
	Subject  string
	Operator string
	Expected any
	Actual   any
	Message  string
	// Cause is set when the predicate could not run, e.g. an invalid pattern.
	Cause error
}

func (e *AssertionFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Message)
}

func (e *AssertionFailure) Unwrap() error { return e.Cause }

func (e *AssertionFailure) Is(target error) bool { return target == ErrAssertion }
