package core

import (
	"context"
	"errors"
)

// Sentinel errors for the validation pipeline. Callers should test these
// with errors.Is; wrapped variants carry the specific detail.
var (
	// ErrInvalidRuleConfiguration indicates a rule binding whose parameters
	// cannot be compiled (bad regex, malformed expression, min > max).
	// Surfaced at binding time, never mid-run.
	ErrInvalidRuleConfiguration = errors.New("invalid rule configuration")

	// ErrUnreadableFile indicates the uploaded file could not be parsed
	// into a grid at all (corrupt archive, undetectable delimiter, no rows).
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrUnknownVerdict indicates a correction that targets a (row, column)
	// pair the run holds no verdict for, or a stored outcome value outside
	// the known set.
	ErrUnknownVerdict = errors.New("unknown verdict")

	// ErrCancelled indicates a run was cancelled before completion.
	// Cancelled runs persist no verdicts.
	ErrCancelled = errors.New("run cancelled")

	// ErrRunInFlight indicates another run for the same template and file
	// fingerprint is already pending or running.
	ErrRunInFlight = errors.New("run already in flight")

	// ErrTooManyRuns indicates the concurrent run limiter rejected the
	// request because all slots are occupied.
	ErrTooManyRuns = errors.New("too many concurrent runs")

	// ErrNotFound indicates the requested template, run, or column does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrRunNotTerminal indicates an operation that requires a completed
	// run (corrections, export, re-validation) was attempted against a
	// pending or running one.
	ErrRunNotTerminal = errors.New("run has not finished")

	// ErrRunSuperseded indicates a correction or re-validation targeted a
	// run that already has a successor.
	ErrRunSuperseded = errors.New("run already superseded")
)

// IsCancelled reports whether err stems from cancellation rather than a
// genuine processing failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
