package assertions

import (
	"errors"
	"fmt"
)

// ErrComparison is matched by every ComparisonError.
var ErrComparison = errors.New("values are not comparable")

// Result is the outcome of applying a Predicate to an actual value.
type Result struct {
	Passed   bool
	Operator string
	Expected any
	Actual   any
	Message  string
	// Err is set when the operands could not be evaluated at all, for
	// example ordering a string against a number or an invalid pattern.
	Err error
}

// Predicate evaluates one actual value.
type Predicate func(actual any) *Result

// Failure returns the result as an error, or nil when it passed.
func (r *Result) Failure() error {
	if r == nil || r.Passed {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return errors.New(r.Message)
}

// ComparisonError reports operands of incompatible types.
type ComparisonError struct {
	Operator string
	Actual   any
	Expected any
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("cannot evaluate %T %s %T: %v %s %v", e.Actual, e.Operator, e.Expected, e.Actual, e.Operator, e.Expected)
}

func (e *ComparisonError) Is(target error) bool {
	return target == ErrComparison
}

func pass(op string, expected, actual any) *Result {
	return &Result{Passed: true, Operator: op, Expected: expected, Actual: actual}
}

func fail(op string, expected, actual any, format string, args ...any) *Result {
	return &Result{
		Operator: op,
		Expected: expected,
		Actual:   actual,
		Message:  fmt.Sprintf(format, args...),
	}
}

func incomparable(op string, expected, actual any) *Result {
	err := &ComparisonError{Operator: op, Actual: actual, Expected: expected}
	return &Result{
		Operator: op,
		Expected: expected,
		Actual:   actual,
		Message:  err.Error(),
		Err:      err,
	}
}
