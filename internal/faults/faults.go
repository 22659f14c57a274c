// Package faults defines the closed error taxonomy for a reconciliation run.
// Only the three configuration-class errors terminate a run; everything else
// degrades to a logged, ledgered, or reported condition.
package faults

import (
	"errors"
	"fmt"
)

// Sentinel errors for run-level conditions.
var (
	// ErrSourceUnavailable indicates the source feed could not be read at all.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInvalidConfiguration indicates a non-runnable configuration,
	// e.g. a non-positive batch size.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrPartitionInvariant indicates two partition groups share a unit or a
	// resource reference. The affinity graph or the packing step is broken;
	// this is never retryable.
	ErrPartitionInvariant = errors.New("partition invariant violated")

	// ErrOperationTimeout indicates an external operation exceeded its
	// wall-clock budget.
	ErrOperationTimeout = errors.New("operation timed out")

	// ErrDrainStalled indicates the pending-work queue stopped shrinking and
	// the drain loop gave up early. Reported, not fatal.
	ErrDrainStalled = errors.New("drain stalled")
)

// ParseError reports a malformed field in the source feed. A bad numeric
// column is surfaced as a defect instead of being coerced to a sentinel value
// that would silently propagate into grouping and the remote-job parameter.
type ParseError struct {
	Line   int
	Column int
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d column %d: %s %q", e.Line, e.Column, e.Reason, e.Value)
}

// Unwrap ties parse defects to the source-unavailable class: both abort the
// run before any external call is made.
func (e *ParseError) Unwrap() error { return ErrSourceUnavailable }

// Fatal reports whether err belongs to one of the kinds that must terminate
// the whole run.
func Fatal(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrPartitionInvariant)
}
