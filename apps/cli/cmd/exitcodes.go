package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/reqflow/packages/core/parser"
)

const (
	// ExitSuccess indicates all checks passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more checks failed
	ExitTestFailure = 1

	// ExitParseError indicates a suite file could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates every failing check failed to get a response
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError attaches a process exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return ExitParseError
	}
	return ExitUsageError
}
