// Package runner executes reqflow suites.
//
// Checks run in dependency order. Values captured by one check are visible
// to the checks after it, a check whose dependency did not pass is skipped,
// and with Bail the run stops at the first failure. Suites without captures
// or dependencies may run in parallel through the fanout package.
package runner
