package response

import (
	"fmt"
	"os"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/assertions"
)

// TestingT is the subset of testing.TB used by Require.
type TestingT interface {
	Helper()
	Fatal(args ...any)
}

// Expectation chains checks against one Response. The first failure is kept
// and every later call becomes a no-op, so a chain reports exactly one error.
// An Expectation is meant to be used by a single goroutine.
type Expectation struct {
	resp *Response
	err  error
}

// Expect starts a chain of checks.
func (r *Response) Expect() *Expectation {
	return &Expectation{resp: r}
}

// Failed returns an Expectation that already carries err, for exchanges
// that never produced a Response.
func Failed(err error) *Expectation {
	return &Expectation{err: err}
}

func (e *Expectation) check(fn func(*Response) error) *Expectation {
	if e.err != nil {
		return e
	}
	e.err = fn(e.resp)
	return e
}

// Err returns the first failure, or nil.
func (e *Expectation) Err() error { return e.err }

// Response returns the underlying response; nil if the exchange failed.
func (e *Expectation) Response() *Response { return e.resp }

// Require stops the test with the first failure, if any.
func (e *Expectation) Require(t TestingT) *Expectation {
	t.Helper()
	if e.err != nil {
		t.Fatal(e.err)
	}
	return e
}

func (e *Expectation) Status(expected int) *Expectation {
	return e.check(func(r *Response) error { return r.CheckStatus(expected) })
}

func (e *Expectation) StatusInRange(min, max int) *Expectation {
	return e.check(func(r *Response) error { return r.CheckStatusInRange(min, max) })
}

// BodyPath applies p to the value at path.
func (e *Expectation) BodyPath(path string, p assertions.Predicate) *Expectation {
	return e.check(func(r *Response) error { return r.CheckBodyPath(path, p) })
}

// Body is BodyPath with an equality predicate.
func (e *Expectation) Body(path string, expected any) *Expectation {
	return e.BodyPath(path, assertions.Equals(expected))
}

func (e *Expectation) Content(p assertions.Predicate) *Expectation {
	return e.check(func(r *Response) error { return r.CheckContent(p) })
}

func (e *Expectation) Errors(p assertions.Predicate) *Expectation {
	return e.check(func(r *Response) error { return r.CheckErrors(p) })
}

func (e *Expectation) Schema(schema []byte) *Expectation {
	return e.check(func(r *Response) error { return r.CheckSchema(schema) })
}

func (e *Expectation) Header(name string, p assertions.Predicate) *Expectation {
	return e.check(func(r *Response) error { return r.CheckHeader(name, p) })
}

func (e *Expectation) HeaderPresent(name string) *Expectation {
	return e.check(func(r *Response) error { return r.CheckHeaderPresent(name) })
}

func (e *Expectation) Cookie(name string, p assertions.Predicate) *Expectation {
	return e.check(func(r *Response) error { return r.CheckCookie(name, p) })
}

func (e *Expectation) ElapsedAtMost(max time.Duration) *Expectation {
	return e.check(func(r *Response) error { return r.CheckElapsedAtMost(max) })
}

// SaveToFile writes the body to path: decoded text for text and JSON
// bodies, raw bytes otherwise.
func (e *Expectation) SaveToFile(path string) *Expectation {
	return e.check(func(r *Response) error {
		data := r.raw
		if r.bodyKind == BodyText || r.bodyKind == BodyJSON {
			data = []byte(r.text)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("saving response to %s: %w", path, err)
		}
		return nil
	})
}
